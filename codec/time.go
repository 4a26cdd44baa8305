// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import "time"

// Duration is a signed 64-bit tick count at nanosecond resolution, encoded
// as a fixed 8-byte integer with no length prefix.
type Duration int64

func FromStdDuration(d time.Duration) Duration { return Duration(d) }
func (d Duration) Std() time.Duration          { return time.Duration(d) }

func (d Duration) fingerprintSelf(*seenTypes) Fingerprint {
	return leafFingerprint(familyDuration, true, 8)
}

func (d Duration) encodeSelf(e *Encoder) error { return e.PutInt64(int64(d)) }

func (d *Duration) decodeSelf(dec *Decoder) error {
	v, err := dec.GetInt64()
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// TimePoint is a signed 64-bit nanosecond offset from the Unix epoch.
type TimePoint int64

func FromTime(t time.Time) TimePoint { return TimePoint(t.UnixNano()) }
func (t TimePoint) Time() time.Time  { return time.Unix(0, int64(t)) }

func (t TimePoint) fingerprintSelf(*seenTypes) Fingerprint {
	return leafFingerprint(familyTimePoint, true, 8)
}

func (t TimePoint) encodeSelf(e *Encoder) error { return e.PutInt64(int64(t)) }

func (t *TimePoint) decodeSelf(d *Decoder) error {
	v, err := d.GetInt64()
	if err != nil {
		return err
	}
	*t = TimePoint(v)
	return nil
}
