package web

import (
	"net/http"

	boxd "github.com/lnbitsbox/boxd/pkg"
)

type StatsResponse struct {
	Current boxd.StatsSample  `json:"current"`
	History boxd.StatsHistory `json:"history"`
}

func (t api) getStats(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, StatsResponse{
		Current: t.monitor.Current(r.Context()),
		History: t.monitor.History(),
	})
}
