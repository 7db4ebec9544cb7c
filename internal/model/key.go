package model

import (
	"slices"
	"time"
)

// KeyRecord is the persisted state of one access key.
type KeyRecord struct {
	// Expiry is an absolute deadline in Unix milliseconds.
	Expiry  int64    `json:"expiry"`
	Devices []string `json:"devices"`
}

// Expired reports whether the key is past its expiry at now. A key is still
// valid during the exact millisecond of its expiry.
func (k *KeyRecord) Expired(now time.Time) bool {
	return now.UnixMilli() > k.Expiry
}

func (k *KeyRecord) HasDevice(deviceID string) bool {
	return slices.Contains(k.Devices, deviceID)
}

// AddDevice appends deviceID unless it is already bound. It reports whether
// the record changed.
func (k *KeyRecord) AddDevice(deviceID string) bool {
	if k.HasDevice(deviceID) {
		return false
	}
	k.Devices = append(k.Devices, deviceID)
	return true
}

// KeyTable maps key strings to their records.
type KeyTable map[string]*KeyRecord

// GeneratedKey is returned once when a key is issued.
type GeneratedKey struct {
	Key    string `json:"key"`
	Expiry int64  `json:"expiry"`
}
