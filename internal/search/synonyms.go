package search

// LegalSynonyms maps institution and statute acronyms to their full names.
// Lookups go both ways: the acronym expands to the phrase and a phrase found
// in text adds the acronym. Keys and phrases are normalized when an Expander
// is built, so "Rules of Court" is stored as "rule of court".
//
// "sec" is deliberately absent: the normalizer always reads it as "section".
var LegalSynonyms = map[string][]string{
	// Codes and issuances
	"rpc":  {"revised penal code"},
	"roc":  {"rules of court"},
	"bp":   {"batas pambansa"},
	"pd":   {"presidential decree"},
	"irr":  {"implementing rules and regulations"},
	"ra":   {"republic act"},
	"eo":   {"executive order"},
	"ao":   {"administrative order"},
	"mc":   {"memorandum circular"},
	"vawc": {"violence against women and their children"},
	"cdsa": {"comprehensive dangerous drugs act"},

	// Agencies
	"doj":   {"department of justice"},
	"nbi":   {"national bureau of investigation"},
	"dilg":  {"department of the interior and local government"},
	"ltfrb": {"land transportation franchising and regulatory board"},
	"dotr":  {"department of transportation"},
	"dhsud": {"department of human settlements and urban development"},
	"pnp":   {"philippine national police"},
	"lto":   {"land transportation office"},
	"mmda":  {"metropolitan manila development authority"},
	"dswd":  {"department of social welfare and development"},
	"chr":   {"commission on human rights"},
	"bir":   {"bureau of internal revenue"},
	"dole":  {"department of labor and employment"},
	"deped": {"department of education"},
	"pdea":  {"philippine drug enforcement agency"},
	"lgu":   {"local government unit"},
}

// AntiPrefixAllowlist holds the bases for which "anti-X" may also match "X".
// Anything not listed keeps its prefix, so "anti-red-tape" never matches "red".
var AntiPrefixAllowlist = []string{
	"graft",
	"hazing",
	"carnapping",
	"wiretapping",
	"trafficking",
	"fencing",
	"terrorism",
	"torture",
	"bullying",
	"smoking",
	"mendicancy",
	"squatting",
	"drunk",
	"photo",
	"voyeurism",
	"dummy",
}

// versusForms are interchangeable in case titles.
var versusForms = []string{"v", "vs", "versus"}
