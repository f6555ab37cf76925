package models

import (
	"github.com/pkg/errors"

	"tron-multisig/errs"
)

// Roster is the fixed set of owner addresses plus the approval
// threshold. It is established at creation time and read-only afterwards.
type Roster struct {
	Owners    []string `json:"owners"`
	Threshold int      `json:"threshold"`
}

// Validate enforces the roster invariants: at least one owner, no
// duplicates, every address well-formed, 1 <= threshold <= len(owners).
func (r Roster) Validate() error {
	if len(r.Owners) == 0 {
		return errors.Wrap(errs.ErrValidation, "roster has no owners")
	}
	seen := make(map[string]bool, len(r.Owners))
	for _, o := range r.Owners {
		if err := ValidateAddress(o); err != nil {
			return err
		}
		if seen[o] {
			return errors.Wrapf(errs.ErrValidation, "duplicate owner %s", o)
		}
		seen[o] = true
	}
	if r.Threshold < 1 {
		return errors.Wrap(errs.ErrValidation, "threshold must be at least 1")
	}
	if r.Threshold > len(r.Owners) {
		return errors.Wrapf(errs.ErrValidation,
			"threshold %d exceeds owner count %d", r.Threshold, len(r.Owners))
	}
	return nil
}

// Contains reports whether addr is part of the roster.
func (r Roster) Contains(addr string) bool {
	for _, o := range r.Owners {
		if o == addr {
			return true
		}
	}
	return false
}
