package cli

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

// progressOut is where spinners and bars draw. Transcripts own stdout.
var progressOut io.Writer = os.Stderr

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return animate(bar, 120*time.Millisecond)
}

// startDurationProgress fills a bar over a fixed recording length, one step
// per second.
func startDurationProgress(enabled bool, description string, duration time.Duration) stopFunc {
	if !enabled || duration <= 0 {
		return func() {}
	}

	total := int64(duration / time.Second)
	if total <= 0 {
		total = 1
	}

	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return animate(bar, time.Second)
}

// animate advances bar every interval until the returned func is called.
// Calling it more than once is fine.
func animate(bar *progressbar.ProgressBar, interval time.Duration) stopFunc {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
