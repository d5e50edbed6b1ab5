package verification

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/octobees/contact-enricher/internal/entity"
)

const (
	defaultPhoneRegion = "US"

	phoneScoreValid     = 40
	phoneScoreMobile    = 40
	phoneScoreLandline  = 25
	phoneScoreVoIP      = 10
	phoneScoreCarrier   = 10
	phoneScoreHighValue = 10
)

// PhoneVerifier parses numbers and classifies the line.
type PhoneVerifier struct {
	DefaultRegion string
	highValue     map[string]struct{}
}

// NewPhoneVerifier builds a verifier; numbers without a country prefix are
// parsed against defaultRegion.
func NewPhoneVerifier(defaultRegion string, highValueCountries []string) *PhoneVerifier {
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = defaultPhoneRegion
	}
	hv := make(map[string]struct{}, len(highValueCountries))
	for _, c := range highValueCountries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			hv[c] = struct{}{}
		}
	}
	return &PhoneVerifier{DefaultRegion: region, highValue: hv}
}

// Verify parses and scores a phone number. Invalid numbers score 0.
func (v *PhoneVerifier) Verify(raw string) entity.PhoneVerification {
	res := entity.PhoneVerification{Phone: strings.TrimSpace(raw), Type: entity.PhoneTypeUnknown}
	if res.Phone == "" {
		res.Reason = ReasonUnparseable
		return res
	}
	number, err := phonenumbers.Parse(res.Phone, v.DefaultRegion)
	if err != nil {
		res.Reason = ReasonUnparseable
		return res
	}
	region := phonenumbers.GetRegionCodeForNumber(number)
	if !phonenumbers.IsValidNumberForRegion(number, region) {
		res.Reason = ReasonInvalidNumber
		return res
	}

	res.IsValid = true
	res.E164 = phonenumbers.Format(number, phonenumbers.E164)
	res.Region = region
	if carrier, err := phonenumbers.GetCarrierForNumber(number, "en"); err == nil {
		res.Carrier = strings.TrimSpace(carrier)
	}
	res.Type = classifyLine(phonenumbers.GetNumberType(number), res.Carrier)

	score := phoneScoreValid
	switch res.Type {
	case entity.PhoneTypeMobile:
		score += phoneScoreMobile
	case entity.PhoneTypeLandline:
		score += phoneScoreLandline
	case entity.PhoneTypeVoIP:
		score += phoneScoreVoIP
	}
	if res.Carrier != "" {
		score += phoneScoreCarrier
	}
	if _, ok := v.highValue[region]; ok {
		score += phoneScoreHighValue
	}
	res.Score = clamp(score)
	res.Reason = ReasonValid
	return res
}

// classifyLine maps the library number type, letting carrier keywords refine it.
// A VoIP carrier always wins.
func classifyLine(kind phonenumbers.PhoneNumberType, carrier string) entity.PhoneType {
	lower := strings.ToLower(carrier)
	for _, kw := range voipCarrierKeywords {
		if lower != "" && strings.Contains(lower, kw) {
			return entity.PhoneTypeVoIP
		}
	}

	switch kind {
	case phonenumbers.MOBILE, phonenumbers.PAGER:
		return entity.PhoneTypeMobile
	case phonenumbers.FIXED_LINE:
		return entity.PhoneTypeLandline
	case phonenumbers.VOIP:
		return entity.PhoneTypeVoIP
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return entity.PhoneTypeMobile
	}
	for _, kw := range mobileCarrierKeywords {
		if lower != "" && strings.Contains(lower, kw) {
			return entity.PhoneTypeMobile
		}
	}
	return entity.PhoneTypeUnknown
}
