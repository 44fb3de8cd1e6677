package binlog

import (
	"fmt"
	"time"

	"github.com/vczyh/mysql-cdc/flag"
)

// Packed temporal values use the MySQL in-memory layout: the integer part
// in the high bits and microseconds in the low 24 bits.
const (
	packedFracBits = 24

	timefIntOfs     = 0x800000
	timefOfs        = 0x800000000000
	datetimefIntOfs = 0x8000000000
)

// unpackTime decodes a packed TIME value.
func unpackTime(packed int64) time.Duration {
	neg := packed < 0
	if neg {
		packed = -packed
	}

	hms := packed >> packedFracBits
	hour := (hms >> 12) % (1 << 10)
	minute := (hms >> 6) % (1 << 6)
	second := hms % (1 << 6)
	usec := packed % (1 << packedFracBits)

	d := time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second +
		time.Duration(usec)*time.Microsecond
	if neg {
		return -d
	}
	return d
}

// packTime is the inverse of unpackTime.
func packTime(d time.Duration) int64 {
	neg := d < 0
	if neg {
		d = -d
	}
	hour := int64(d / time.Hour)
	minute := int64(d/time.Minute) % 60
	second := int64(d/time.Second) % 60
	usec := int64(d/time.Microsecond) % 1000000

	packed := (hour<<12|minute<<6|second)<<packedFracBits | usec
	if neg {
		return -packed
	}
	return packed
}

// unpackDatetime decodes a packed DATETIME or DATE value. The all zero date
// yields the zero time.Time.
func unpackDatetime(packed int64, loc *time.Location) time.Time {
	if packed < 0 {
		packed = -packed
	}
	ymdhms := packed >> packedFracBits
	usec := packed % (1 << packedFracBits)

	ymd := ymdhms >> 17
	ym := ymd >> 5
	hms := ymdhms % (1 << 17)

	day := ymd % (1 << 5)
	month := ym % 13
	year := ym / 13

	second := hms % (1 << 6)
	minute := (hms >> 6) % (1 << 6)
	hour := hms >> 12

	return newTime(int(year), int(month), int(day), int(hour), int(minute), int(second), int(usec), loc)
}

// packDatetime is the inverse of unpackDatetime.
func packDatetime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	ym := int64(t.Year())*13 + int64(t.Month())
	ymd := ym<<5 | int64(t.Day())
	hms := int64(t.Hour())<<12 | int64(t.Minute())<<6 | int64(t.Second())
	return (ymd<<17|hms)<<packedFracBits | int64(t.Nanosecond()/1000)
}

func newTime(year, month, day, hour, minute, second, usec int, loc *time.Location) time.Time {
	if year == 0 && month == 0 && day == 0 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, usec*1000, loc)
}

// formatTemporal renders a packed value of fieldType the way MySQL prints it
// inside a JSON document.
func formatTemporal(fieldType flag.TableColumnType, packed int64) (string, error) {
	switch fieldType {
	case flag.MySQLTypeTime:
		d := unpackTime(packed)
		sign := ""
		if d < 0 {
			sign = "-"
			d = -d
		}
		return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign,
			int64(d/time.Hour), int64(d/time.Minute)%60, int64(d/time.Second)%60, int64(d/time.Microsecond)%1000000), nil
	case flag.MySQLTypeDate:
		t := unpackDatetime(packed, time.UTC)
		if t.IsZero() {
			return "0000-00-00", nil
		}
		return t.Format("2006-01-02"), nil
	case flag.MySQLTypeDatetime, flag.MySQLTypeTimestamp:
		t := unpackDatetime(packed, time.UTC)
		if t.IsZero() {
			return "0000-00-00 00:00:00.000000", nil
		}
		return t.Format("2006-01-02 15:04:05.000000"), nil
	default:
		return "", fmt.Errorf("unsupported temporal type %s", fieldType)
	}
}
