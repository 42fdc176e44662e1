package boxd

// A Change is pushed to websocket clients whenever something they
// display changes underneath them, eg: a new stats sample or a wifi
// attempt moving to a terminal state.
type Change struct {
	ID     string `json:"id"`
	Error  string `json:"error"`
	Type   string `json:"type"`
	Update any    `json:"update"`
}

const (
	ChangeStats      = "stats"
	ChangeWifi       = "wifi"
	ChangeUpdateStep = "update"
)
