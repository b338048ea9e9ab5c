// Package geoaudit enriches the debugger's audit trail with
// geolocation of the request's IP. Purely observational: it has no
// influence over auction outcomes.
package geoaudit

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	log "github.com/sirupsen/logrus"
)

// Location is the subset of a GeoIP city record kept for audit detail.
type Location struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
}

// Enricher looks up the geolocation of request IPs for audit logging.
type Enricher struct {
	db *geoip2.Reader
}

// NewEnricher opens the GeoIP database at dbPath. If the database
// cannot be opened, the Enricher still works but every lookup returns
// the unknown location, mirroring a deploy without the database
// mounted.
func NewEnricher(dbPath string) *Enricher {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		log.WithError(err).Warn("geoaudit: failed to open GeoIP database, audit enrichment disabled")
		return &Enricher{db: nil}
	}
	log.Info("geoaudit: GeoIP database loaded")
	return &Enricher{db: db}
}

func (e *Enricher) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

var unknown = Location{Country: "Unknown", CountryCode: "XX", City: "Unknown"}

// Lookup resolves ipStr to a Location, falling back to Unknown when
// the database is unavailable, the IP does not parse, or the lookup
// misses.
func (e *Enricher) Lookup(ipStr string) Location {
	if e.db == nil {
		return unknown
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return unknown
	}
	record, err := e.db.City(ip)
	if err != nil {
		return unknown
	}
	return Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
}
