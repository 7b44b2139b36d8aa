package procutil

import (
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestPIDAlive_CurrentProcessIsAlive(t *testing.T) {
	if !PIDAlive(os.Getpid()) {
		t.Fatalf("expected the current process to report alive")
	}
}

func TestPIDAlive_ZeroAndNegativeAreFalse(t *testing.T) {
	if PIDAlive(0) || PIDAlive(-1) {
		t.Fatalf("expected non-positive pids to report not alive")
	}
}

func TestKillGroupAfterGrace_ConfirmsDeathAfterSigkill(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	SetPgid(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	confirmed := KillGroupAfterGrace(cmd, 10*time.Millisecond, exited)
	if !confirmed {
		t.Fatalf("expected KillGroupAfterGrace to confirm the group leader's death")
	}
	if PIDAlive(cmd.Process.Pid) {
		t.Fatalf("expected process %d to be dead after KillGroupAfterGrace", cmd.Process.Pid)
	}
}
