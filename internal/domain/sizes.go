package domain

import (
	"sort"
	"strconv"
)

// Sizes is the UK size run offered when creating a listing.
var Sizes = []string{
	"3", "3.5", "4", "4.5", "5", "5.5", "6", "6.5", "7", "7.5", "8", "8.5",
	"9", "9.5", "10", "10.5", "11", "11.5", "12", "12.5", "13", "14", "15",
}

// LessSize orders sizes numerically, falling back to string order for
// sizes that are not numbers.
func LessSize(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func SortListingsBySize(listings []Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return LessSize(listings[i].Size, listings[j].Size)
	})
}
