package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Unlock is a trigger effect that survives loop resets: the inactive action
// labelled Label inside variant Variant of entry TimeID has been promoted.
type Unlock struct {
	TimeID  string `json:"time_id"`
	Variant int    `json:"variant"`
	Label   string `json:"label"`
}

var unlockKeyRe = regexp.MustCompile(`^([A-Za-z0-9_-]+):(\d+):\((.+)\)$`)

// Key encodes the unlock in the same shape a trigger target is authored in.
func (u Unlock) Key() string {
	return fmt.Sprintf("%s:%d:(%s)", u.TimeID, u.Variant, u.Label)
}

func (u Unlock) String() string {
	return u.Key()
}

// ParseUnlock decodes a key produced by Unlock.Key.
func ParseUnlock(key string) (Unlock, error) {
	m := unlockKeyRe.FindStringSubmatch(key)
	if m == nil {
		return Unlock{}, &SerializationError{Input: key, Err: errors.New("expected timeId:variant:(label)")}
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return Unlock{}, &SerializationError{Input: key, Err: err}
	}
	return Unlock{TimeID: m[1], Variant: v, Label: m[3]}, nil
}
