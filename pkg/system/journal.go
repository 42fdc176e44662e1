package system

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/sdjournal"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/sirupsen/logrus"
)

const maxTailLines = 500

func NewJournalReader(config boxd.ServerConfig, log logrus.FieldLogger) boxd.JournalReader {
	log = log.WithField("system", "journal")
	if config.DevMode {
		return DevJournalReader{}
	}
	return JournalReader{log: log}
}

type JournalReader struct {
	log logrus.FieldLogger
}

func openUnitJournal(service string) (*sdjournal.Journal, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, err
	}

	// Add a match for the specific service
	if err := j.AddMatch(fmt.Sprintf("_SYSTEMD_UNIT=%s", unitName(service))); err != nil {
		j.Close()
		return nil, err
	}

	if err := j.SeekTail(); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// Tail returns up to n of the most recent messages logged by service,
// oldest first.
func (t JournalReader) Tail(service string, n int) ([]string, error) {
	if n <= 0 || n > maxTailLines {
		n = maxTailLines
	}

	j, err := openUnitJournal(service)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	skipped, err := j.PreviousSkip(uint64(n))
	if err != nil {
		return nil, err
	}

	out := []string{}
	for i := uint64(0); i < skipped; i++ {
		entry, err := j.GetEntry()
		if err == nil {
			out = append(out, entry.Fields[sdjournal.SD_JOURNAL_FIELD_MESSAGE])
		}
		if adv, err := j.Next(); err != nil || adv == 0 {
			break
		}
	}
	return out, nil
}

// GetJournalChan follows the journal of service, starting 50 lines
// back. The channel is closed once cancel is called.
func (t JournalReader) GetJournalChan(service string) (context.CancelFunc, chan string, error) {
	j, err := openUnitJournal(service)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string, 10)

	go func() {
		defer close(out)
		defer j.Close()

		// skip back 50 lines..
		if _, err := j.PreviousSkip(50); err != nil {
			t.log.WithError(err).Warn("Could not rewind journal")
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			i, err := j.Next()
			if err != nil {
				t.log.WithError(err).Warn("Journal read failed")
				return
			}

			if i == 0 {
				j.Wait(time.Second)
				continue
			}

			entry, err := j.GetEntry()
			if err != nil {
				continue
			}

			select {
			case out <- entry.Fields[sdjournal.SD_JOURNAL_FIELD_MESSAGE]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return cancel, out, nil
}

// DevJournalReader serves canned log lines.
type DevJournalReader struct{}

func (t DevJournalReader) Tail(service string, n int) ([]string, error) {
	lines := []string{
		fmt.Sprintf("DEV MODE: %s started", service),
		fmt.Sprintf("DEV MODE: %s is healthy", service),
	}
	if n > 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func (t DevJournalReader) GetJournalChan(service string) (context.CancelFunc, chan string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string)
	go func() {
		defer close(out)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ts := <-ticker.C:
				select {
				case out <- fmt.Sprintf("DEV MODE: %s heartbeat %s", service, ts.Format(time.RFC3339)):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return cancel, out, nil
}
