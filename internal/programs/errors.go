package programs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

// ErrQRPending marks a program that is stored but lacks at least one QR image.
var ErrQRPending = errors.New("qr codes pending")

// ErrArtifactMissing is returned when a requested QR image does not exist.
var ErrArtifactMissing = errors.New("qr code not generated")

// ToggleRejectedError is returned when the QR status is toggled outside the validity window.
type ToggleRejectedError struct {
	ProgramID uint
	Now       time.Time
	Window    schedule.Window
}

func (e *ToggleRejectedError) Error() string {
	reason := "has not started"
	if e.Now.After(e.Window.To) {
		reason = "has ended"
	}
	return fmt.Sprintf("cannot toggle QR status of program %d outside its validity window: window %s", e.ProgramID, reason)
}

type PartialPolicy string

const (
	// PolicyRollback discards the program when either code fails to render.
	PolicyRollback PartialPolicy = "rollback"
	// PolicyKeep stores the program with the code that rendered and flags it pending.
	PolicyKeep PartialPolicy = "keep"
)

func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch PartialPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRollback:
		return PolicyRollback, nil
	case PolicyKeep:
		return PolicyKeep, nil
	}
	return "", fmt.Errorf("unknown qr partial policy %q, must be rollback or keep", s)
}
