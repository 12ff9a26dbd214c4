package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rpcswitchd.pid")

	want := &DaemonState{
		PID:        os.Getpid(),
		PolicyPath: "/etc/rpcswitch/policy.yaml",
		ListenAddr: ":7654",
		StartedAt:  time.Now().Truncate(time.Second),
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.PID != want.PID || got.PolicyPath != want.PolicyPath || got.ListenAddr != want.ListenAddr {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.pid")); err == nil {
		t.Fatal("expected error loading a missing pidfile")
	}
}

func TestDelete_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	if err := Delete(filepath.Join(dir, "missing.pid")); err != nil {
		t.Fatalf("Delete on missing file returned error: %v", err)
	}
}

func TestDelete_RemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rpcswitchd.pid")
	if err := Save(path, &DaemonState{PID: os.Getpid()}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := Delete(path); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected pidfile to be removed")
	}
}

func TestVerifyPID_CurrentProcess(t *testing.T) {
	if !VerifyPID(os.Getpid()) {
		t.Fatal("expected VerifyPID to report the current process as running")
	}
}

func TestVerifyPID_InvalidPID(t *testing.T) {
	if VerifyPID(0) {
		t.Fatal("expected VerifyPID(0) to be false")
	}
	if VerifyPID(-1) {
		t.Fatal("expected VerifyPID(-1) to be false")
	}
}

func TestVerifyPID_NonexistentProcess(t *testing.T) {
	if VerifyPID(999999999) {
		t.Fatal("expected VerifyPID for a PID that doesn't exist to be false")
	}
}

func TestIsRunning_Nil(t *testing.T) {
	if IsRunning(nil) {
		t.Fatal("expected IsRunning(nil) to be false")
	}
}

func TestIsRunning_CurrentProcess(t *testing.T) {
	st := &DaemonState{PID: os.Getpid()}
	if !IsRunning(st) {
		t.Fatal("expected IsRunning to be true for the current process")
	}
}

func TestSignalReload_NoState(t *testing.T) {
	if err := SignalReload(nil); err == nil {
		t.Fatal("expected error signaling a nil daemon state")
	}
}

func TestSignalReload_DeadProcess(t *testing.T) {
	st := &DaemonState{PID: 999999999}
	if err := SignalReload(st); err == nil {
		t.Fatal("expected error signaling a dead process")
	}
}

func TestKillDaemon_NilState(t *testing.T) {
	if err := KillDaemon(nil); err != nil {
		t.Fatalf("KillDaemon(nil) returned error: %v", err)
	}
}

func TestKillDaemon_AlreadyDead(t *testing.T) {
	st := &DaemonState{PID: 999999999}
	if err := KillDaemon(st); err != nil {
		t.Fatalf("KillDaemon on a dead process returned error: %v", err)
	}
}

func TestWithLock_RunsFunction(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "rpcswitchd.lock")

	var ran bool
	err := WithLock(lockPath, time.Second, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock returned error: %v", err)
	}
	if !ran {
		t.Fatal("expected the locked function to run")
	}
}

func TestWithLock_TimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "rpcswitchd.lock")

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = WithLock(lockPath, time.Second, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := WithLock(lockPath, 200*time.Millisecond, func() error {
		t.Fatal("should not run while the lock is held elsewhere")
		return nil
	})
	if err == nil {
		t.Fatal("expected timeout error while the lock is held")
	}
}
