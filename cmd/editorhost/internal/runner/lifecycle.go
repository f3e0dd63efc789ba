package runner

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// stopWithGrace asks proc to exit and waits on done. If done is not closed
// within grace, proc is killed. It reports whether the kill was needed.
func stopWithGrace(proc *os.Process, done <-chan struct{}, grace time.Duration) (bool, error) {
	if err := terminate(proc); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-done
			return false, nil
		}
		// The polite signal is unsupported or failed; go straight to kill.
		return true, kill(proc, done)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return false, nil
	case <-timer.C:
		return true, kill(proc, done)
	}
}

func kill(proc *os.Process, done <-chan struct{}) error {
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process %d: %w", proc.Pid, err)
	}
	<-done
	return nil
}
