package domain

import (
	"strconv"
	"time"
)

// Collection names in the document store. The referralCodes collection is an
// index keyed by the normalized code itself, so duplicate creates collide on
// the same watched document.
const (
	CollectionDSAs  = "dsas"
	CollectionLinks = "referralLinks"
	CollectionCodes = "referralCodes"
)

// DSAStatus is the lifecycle state of an agent
type DSAStatus string

const (
	StatusActive    DSAStatus = "Active"
	StatusSuspended DSAStatus = "Suspended"
)

// DSA represents a Direct Selling Agent.
// ActiveLinks and Signups are denormalized counters owned exclusively by the
// link engine: ActiveLinks tracks the number of referral links pointing at this
// DSA, Signups the sum of signups across those links.
type DSA struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Status      DSAStatus `json:"status"`
	Avatar      string    `json:"avatar,omitempty"`
	ActiveLinks int       `json:"activeLinks"`
	Signups     int       `json:"signups"`
}

// Product is a promotable product from the static catalog
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReferralLink ties a DSA to a product via a unique uppercase code.
// DSAName and ProductName are point-in-time snapshots taken at creation;
// later renames do not propagate. ConversionRate is always derived from
// Clicks/Signups and never independently settable.
type ReferralLink struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	DSAID          string    `json:"dsaId"`
	DSAName        string    `json:"dsaName"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	Clicks         int       `json:"clicks"`
	Signups        int       `json:"signups"`
	ConversionRate string    `json:"conversionRate"`
	CreationDate   time.Time `json:"creationDate"`
	Link           string    `json:"link"`
}

// CodeRef is the referralCodes index document, keyed by the normalized code
type CodeRef struct {
	LinkID string `json:"linkId"`
	Code   string `json:"code"`
}

// ConversionRate derives the percentage string for a clicks/signups pair.
// "0.00%" whenever clicks is zero, regardless of signups.
func ConversionRate(clicks, signups int) string {
	if clicks <= 0 {
		return "0.00%"
	}
	rate := float64(signups) / float64(clicks) * 100
	return strconv.FormatFloat(rate, 'f', 2, 64) + "%"
}
