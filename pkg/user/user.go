package user

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	Settings    Settings
}

type Settings struct {
	// Timezone is an IANA name; the user's calendar day ("today") is evaluated in it.
	Timezone string
	Currency string
}

// Location resolves the user's timezone, falling back to UTC for unknown or empty names.
func (u User) Location() *time.Location {
	if u.Settings.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Settings.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q for user %d, using UTC", u.Settings.Timezone, u.Id)
		return time.UTC
	}
	return loc
}
