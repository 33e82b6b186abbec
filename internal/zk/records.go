// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package zk

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the wall-clock format punches are rendered in.
const TimestampLayout = "2006-01-02T15:04:05"

// Layout selects the record sizes to decode. Firmware generations differ and
// the tables carry no per-record size marker.
type Layout string

const (
	LayoutAuto Layout = "auto"
	LayoutV1   Layout = "v1" // 28-byte users, 16-byte attendance
	LayoutV2   Layout = "v2" // 72-byte users, 40-byte attendance
)

const (
	userRecordV1 = 28
	userRecordV2 = 72

	attRecordShort = 8
	attRecordV1    = 16
	attRecordV2    = 40
)

// User is one row of the device user table.
type User struct {
	UID       uint16
	Privilege uint8
	Name      string
	Card      uint32
	UserID    string
}

// Attendance is one row of the device attendance log.
type Attendance struct {
	UserID    string
	Timestamp time.Time
	Status    uint8
	Punch     uint8
	Raw       []byte
}

// TimestampString renders the punch time in TimestampLayout.
func (a Attendance) TimestampString() string {
	return a.Timestamp.Format(TimestampLayout)
}

// RawHex returns the undecoded record bytes as hex.
func (a Attendance) RawHex() string {
	return hex.EncodeToString(a.Raw)
}

// DecodeTime unpacks the device's packed timestamp. The device stores local
// wall-clock time with no zone, so the result carries loc.
func DecodeTime(t uint32, loc *time.Location) time.Time {
	second := int(t % 60)
	t /= 60
	minute := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(t%12) + 1
	t /= 12
	year := int(t) + 2000
	return time.Date(year, month, day, hour, minute, second, 0, loc)
}

// EncodeTime is the inverse of DecodeTime. Used by test devices.
func EncodeTime(ts time.Time) uint32 {
	return uint32(((ts.Year()-2000)*12*31+(int(ts.Month())-1)*31+ts.Day()-1)*(24*60*60) +
		(ts.Hour()*60+ts.Minute())*60 + ts.Second())
}

// cString returns b up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

// tableBody strips the leading uint32 total size from a table dump.
func tableBody(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, nil
	}
	total := int(binary.LittleEndian.Uint32(data[:4]))
	body := data[4:]
	if total > len(body) {
		return nil, 0, fmt.Errorf("%w: table declares %d bytes, got %d", ErrShortPayload, total, len(body))
	}
	return body[:total], total, nil
}

func userRecordSize(layout Layout, total int) (int, error) {
	switch layout {
	case LayoutV1:
		return userRecordV1, nil
	case LayoutV2:
		return userRecordV2, nil
	}
	switch {
	case total%userRecordV2 == 0:
		return userRecordV2, nil
	case total%userRecordV1 == 0:
		return userRecordV1, nil
	default:
		return 0, fmt.Errorf("%w: user table of %d bytes matches no record size", ErrShortPayload, total)
	}
}

func attendanceRecordSize(layout Layout, total int) (int, error) {
	switch layout {
	case LayoutV1:
		return attRecordV1, nil
	case LayoutV2:
		return attRecordV2, nil
	}
	for _, size := range []int{attRecordV2, attRecordV1, attRecordShort} {
		if total%size == 0 {
			return size, nil
		}
	}
	return 0, fmt.Errorf("%w: attendance table of %d bytes matches no record size", ErrShortPayload, total)
}

// DecodeUsers parses a user table dump (leading total size included).
func DecodeUsers(data []byte, layout Layout) ([]User, error) {
	body, total, err := tableBody(data)
	if err != nil || total == 0 {
		return nil, err
	}
	size, err := userRecordSize(layout, total)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, total/size)
	for off := 0; off+size <= len(body); off += size {
		rec := body[off : off+size]
		u := User{
			UID:       binary.LittleEndian.Uint16(rec[0:2]),
			Privilege: rec[2],
		}
		if size == userRecordV1 {
			// <HB5s8sIxBhI: uid, privilege, password, name, card, pad, group, timezone, user_id
			u.Name = cString(rec[8:16])
			u.Card = binary.LittleEndian.Uint32(rec[16:20])
			u.UserID = strconv.FormatUint(uint64(binary.LittleEndian.Uint32(rec[24:28])), 10)
		} else {
			// <HB8s24sIx7sx24s: uid, privilege, password, name, card, pad, group, pad, user_id
			u.Name = cString(rec[11:35])
			u.Card = binary.LittleEndian.Uint32(rec[35:39])
			u.UserID = cString(rec[48:72])
		}
		if u.Name == "" {
			u.Name = "NN-" + u.UserID
		}
		users = append(users, u)
	}
	return users, nil
}

// DecodeAttendance parses an attendance log dump. users resolves device uids
// for the short record format, which carries no user id string.
func DecodeAttendance(data []byte, layout Layout, users []User, loc *time.Location) ([]Attendance, error) {
	body, total, err := tableBody(data)
	if err != nil || total == 0 {
		return nil, err
	}
	size, err := attendanceRecordSize(layout, total)
	if err != nil {
		return nil, err
	}

	byUID := make(map[uint16]string, len(users))
	for _, u := range users {
		byUID[u.UID] = u.UserID
	}

	records := make([]Attendance, 0, total/size)
	for off := 0; off+size <= len(body); off += size {
		rec := body[off : off+size]
		a := Attendance{Raw: append([]byte(nil), rec...)}
		switch size {
		case attRecordShort:
			// HB4sB
			uid := binary.LittleEndian.Uint16(rec[0:2])
			a.UserID = strconv.Itoa(int(uid))
			if id, ok := byUID[uid]; ok {
				a.UserID = id
			}
			a.Status = rec[2]
			a.Timestamp = DecodeTime(binary.LittleEndian.Uint32(rec[3:7]), loc)
			a.Punch = rec[7]
		case attRecordV1:
			// <I4sBB2sI
			a.UserID = strconv.FormatUint(uint64(binary.LittleEndian.Uint32(rec[0:4])), 10)
			a.Timestamp = DecodeTime(binary.LittleEndian.Uint32(rec[4:8]), loc)
			a.Status = rec[8]
			a.Punch = rec[9]
		default:
			// <H24sB4sB8s
			a.UserID = cString(rec[2:26])
			a.Status = rec[26]
			a.Timestamp = DecodeTime(binary.LittleEndian.Uint32(rec[27:31]), loc)
			a.Punch = rec[31]
		}
		records = append(records, a)
	}
	return records, nil
}
