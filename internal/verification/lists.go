package verification

// Reason codes reported in verification results.
const (
	ReasonValid          = "valid"
	ReasonInvalidSyntax  = "invalid_syntax"
	ReasonDomainNotFound = "domain_not_found"
	ReasonNoMX           = "no_mx"
	ReasonDisposable     = "disposable"
	ReasonRoleBased      = "role_based"
	ReasonCatchAll       = "catch_all_suspected"
	ReasonLowScore       = "low_score"
	ReasonDNSError       = "dns_error"
	ReasonUnparseable    = "unparseable"
	ReasonInvalidNumber  = "invalid_number"
)

var roleAccounts = map[string]struct{}{
	"admin": {}, "administrator": {}, "billing": {}, "careers": {}, "contact": {}, "enquiries": {},
	"hello": {}, "help": {}, "hr": {}, "info": {}, "jobs": {}, "marketing": {}, "media": {},
	"no-reply": {}, "noreply": {}, "office": {}, "postmaster": {}, "press": {}, "sales": {},
	"support": {}, "team": {}, "webmaster": {}, "abuse": {}, "accounts": {}, "contact-us": {},
}

var disposableDomains = map[string]struct{}{
	"10minutemail.com": {}, "dispostable.com": {}, "fakeinbox.com": {}, "getnada.com": {},
	"guerrillamail.com": {}, "maildrop.cc": {}, "mailinator.com": {}, "mintemail.com": {},
	"mohmal.com": {}, "sharklasers.com": {}, "temp-mail.org": {}, "tempmail.com": {},
	"throwawaymail.com": {}, "trashmail.com": {}, "yopmail.com": {}, "emailondeck.com": {},
}

// catchAllGateways are MX suffixes of filtering gateways that accept every
// recipient at SMTP time, so a found address cannot be confirmed.
var catchAllGateways = []string{
	"mimecast.com",
	"pphosted.com",
	"barracudanetworks.com",
	"messagelabs.com",
	"iphmx.com",
	"mailcontrol.com",
	"trendmicro.com",
	"sophos.com",
}

var voipCarrierKeywords = []string{
	"bandwidth", "google voice", "inteliquent", "level 3", "onvoy", "plivo", "ringcentral",
	"skype", "telnyx", "textnow", "twilio", "vonage", "voip",
}

var mobileCarrierKeywords = []string{"mobile", "wireless", "cellular", "mobil"}
