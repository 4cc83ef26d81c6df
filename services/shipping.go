package services

import (
	"math"
	"strings"
	"unicode"

	"github.com/yashrajoria/giftshop-backend/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fee schedule of the in-house carrier, in VND.
const (
	InCityBaseFee      int64 = 20000
	OutOfCityBaseFee   int64 = 35000
	WeightSurchargeFee int64 = 5000
	FreeWeightKg             = 0.5
	ShippingMethodStd        = "Tiêu chuẩn"
)

// FeeEstimator prices a delivery.
type FeeEstimator interface {
	EstimateFee(addr models.ShippingAddress, items []models.ShippingItem) models.ShippingQuote
}

// InHouseEstimator is the deterministic in-house fee table.
type InHouseEstimator struct{}

var inCityProvinces = map[string]bool{
	"ha noi":      true,
	"hanoi":       true,
	"hn":          true,
	"ho chi minh": true,
	"hochiminh":   true,
	"hcm":         true,
	"sai gon":     true,
	"saigon":      true,
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeProvince folds case, diacritics, punctuation and administrative
// prefixes so "TP.HCM" and "Thành phố Hồ Chí Minh" compare equal.
func normalizeProvince(p string) string {
	folded, _, err := transform.String(stripMarks, strings.ToLower(p))
	if err != nil {
		folded = strings.ToLower(p)
	}
	folded = strings.NewReplacer("đ", "d", ".", " ", "-", " ", ",", " ").Replace(folded)
	folded = strings.Join(strings.Fields(folded), " ")
	for _, prefix := range []string{"thanh pho ", "tp ", "tinh "} {
		folded = strings.TrimPrefix(folded, prefix)
	}
	return folded
}

// IsInCity reports whether province gets the lower base fee.
func IsInCity(province string) bool {
	return inCityProvinces[normalizeProvince(province)]
}

// EstimateFee is the base fee of the destination plus 5,000 per started kg
// above the free 0.5 kg. Items without a weight count as 0.2 kg each.
func (InHouseEstimator) EstimateFee(addr models.ShippingAddress, items []models.ShippingItem) models.ShippingQuote {
	fee := OutOfCityBaseFee
	if IsInCity(addr.Province) {
		fee = InCityBaseFee
	}

	var weight float64
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		w := it.WeightKg
		if w <= 0 {
			w = models.DefaultItemWeightKg
		}
		weight += w * float64(it.Qty)
	}
	// Round to grams so float noise cannot start a new block.
	weight = math.Round(weight*1000) / 1000

	if blocks := math.Ceil(weight - FreeWeightKg); blocks > 0 {
		fee += int64(blocks) * WeightSurchargeFee
	}

	return models.ShippingQuote{Fee: fee, Carrier: models.CarrierInHouse, Method: ShippingMethodStd}
}
