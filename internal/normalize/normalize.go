// Package normalize holds the pure canonicalization and hashing functions the
// deduplication model is keyed on. No I/O, fully deterministic.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	legalSuffixExpr = regexp.MustCompile(`(?i)\s+(inc\.?|llc\.?|ltd\.?|limited|corp\.?|corporation|ventures?|capital|partners?|fund)$`)
	nonAlnumExpr    = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceExpr       = regexp.MustCompile(`\s+`)
	controlExpr     = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	linkedinExpr    = regexp.MustCompile(`(?i)linkedin\.com/in/([^/?]+)`)
	twitterURLExpr  = regexp.MustCompile(`(?i)(?:twitter\.com|x\.com)/([^/?]+)`)
	twitterAtExpr   = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)
)

// CompanyName canonicalizes a company name for deduplication: lowercase,
// common legal/fund suffixes stripped, non-alphanumerics removed, whitespace
// collapsed.
func CompanyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = legalSuffixExpr.ReplaceAllString(name, "")
	name = nonAlnumExpr.ReplaceAllString(name, "")
	return spaceExpr.ReplaceAllString(strings.TrimSpace(name), " ")
}

// URL canonicalizes a URL: lowercase, www. prefix stripped, query and fragment
// dropped, trailing slash removed. Empty input yields empty output.
func URL(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}

	host := strings.TrimPrefix(parsed.Host, "www.")
	normalized := parsed.Path
	if parsed.Scheme != "" {
		normalized = fmt.Sprintf("%s://%s%s", parsed.Scheme, host, parsed.Path)
	}
	return strings.TrimSuffix(normalized, "/")
}

// Domain extracts the host of a URL without the www. prefix.
func Domain(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// OrgKey derives the organization deduplication key. Two organizations collide
// iff their normalized name and normalized website (or absence of one) match.
func OrgKey(name, website string) string {
	combined := CompanyName(name) + "|" + URL(website)
	return hashHex(combined)
}

// DealHash derives the deal idempotency hash from the natural key fields.
// A nil date contributes an empty component; a missing amount contributes "0".
func DealHash(orgName string, announcedOn *time.Time, round string, amount float64) string {
	dateStr := ""
	if announcedOn != nil {
		dateStr = announcedOn.Format("2006-01-02")
	}

	amountStr := "0"
	if amount != 0 {
		amountStr = fmt.Sprintf("%.2f", amount)
	}

	combined := fmt.Sprintf("%s|%s|%s|%s",
		CompanyName(orgName),
		dateStr,
		strings.ToLower(strings.TrimSpace(round)),
		amountStr,
	)
	return hashHex(combined)
}

// PersonKey derives a global person key from name and email. The pipelines
// scope identity by discovery organization; this key is stored for audit only.
func PersonKey(fullName, email string) string {
	combined := strings.ToLower(strings.TrimSpace(fullName)) + "|" + strings.ToLower(strings.TrimSpace(email))
	return hashHex(combined)
}

// CleanText collapses whitespace and strips control characters.
func CleanText(text string) string {
	text = spaceExpr.ReplaceAllString(text, " ")
	text = controlExpr.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Truncate shortens text to max runes, appending an ellipsis when cut.
func Truncate(text string, max int) string {
	const suffix = "..."
	if len(text) <= max {
		return text
	}
	if max <= len(suffix) {
		return text[:max]
	}
	return text[:max-len(suffix)] + suffix
}

// TwitterHandle extracts a bare Twitter/X username from a URL or @mention.
func TwitterHandle(text string) string {
	if m := twitterURLExpr.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := twitterAtExpr.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// LinkedInUsername extracts the profile slug from a LinkedIn URL.
func LinkedInUsername(raw string) string {
	if m := linkedinExpr.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
