package utils

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// NormalizeName lowercases a drug name and collapses internal whitespace,
// so "  Warfarin " and "warfarin" produce the same cache key.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// HashQuery fingerprints a full request for the query cache tier.
func HashQuery(query string) string {
	hash := md5.Sum([]byte(NormalizeName(query)))
	return fmt.Sprintf("%x", hash)
}

// HashPair fingerprints two drug names order-independently, so the pair
// (A, B) and the pair (B, A) map to the same interaction cache entry.
func HashPair(drug1, drug2 string) string {
	pair := []string{NormalizeName(drug1), NormalizeName(drug2)}
	sort.Strings(pair)
	hash := md5.Sum([]byte(pair[0] + "|" + pair[1]))
	return fmt.Sprintf("%x", hash)
}
