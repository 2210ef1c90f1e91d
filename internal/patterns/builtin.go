package patterns

import "github.com/fredhutch/phiscan/internal/models"

// builtinCategories fixes the fusion priority of the 18 built-in
// categories. Higher wins when spans overlap. Identifier-shaped numbers
// rank above contextual categories so an SSN always beats the phone
// pattern that happens to match the same digits.
var builtinCategories = []struct {
	name       models.IdentifierCategory
	priority   int
	riskWeight int
}{
	{models.CategorySSN, 100, 1},
	{models.CategoryMRN, 90, 1},
	{models.CategoryHealthPlan, 85, 1},
	{models.CategoryAccount, 80, 1},
	{models.CategoryCertificate, 75, 1},
	{models.CategoryDeviceID, 70, 1},
	{models.CategoryVehicleID, 68, 1},
	{models.CategoryBiometric, 65, 1},
	{models.CategoryIPAddress, 60, 1},
	{models.CategoryEmail, 58, 1},
	{models.CategoryFax, 56, 1},
	{models.CategoryPhone, 55, 1},
	{models.CategoryURL, 48, 1},
	{models.CategoryAddress, 45, 1},
	{models.CategoryDate, 40, 1},
	{models.CategoryPhoto, 35, 1},
	{models.CategoryName, 30, 1},
	{models.CategoryOther, 10, 1},
}

// builtinDefs are the default detection patterns. High-false-positive
// shapes (bare digit runs, member numbers) are context-gated: they only
// count when a nearby keyword confirms the reading.
var builtinDefs = []Def{
	{
		Category:  "SSN",
		Pattern:   `\b\d{3}-\d{2}-\d{4}\b`,
		Validator: "ssn",
	},
	{
		Category:        "SSN",
		Pattern:         `\b\d{9}\b`,
		ContextPattern:  `(?i)\b(?:ssn|social\s+security)\b`,
		ContextRequired: true,
		Validator:       "ssn",
	},
	{
		Category: "MRN",
		Pattern:  `\b(?:MRN|Medical\s+Record(?:\s+Number)?)[:#\s]+[A-Z]?\d{6,10}\b`,
	},
	{
		Category:        "MRN",
		Pattern:         `\b\d{6,10}\b`,
		ContextPattern:  `(?i)\b(?:mrn|medical\s+record|chart\s+number)\b`,
		ContextRequired: true,
	},
	{
		Category: "PHONE",
		Pattern:  `\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`,
	},
	{
		Category:        "FAX",
		Pattern:         `\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`,
		ContextPattern:  `(?i)\bfax\b`,
		ContextRequired: true,
	},
	{
		Category: "EMAIL",
		Pattern:  `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	},
	{
		Category: "DATE",
		Pattern:  `\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:19|20)?\d{2}\b`,
	},
	{
		Category: "DATE",
		Pattern:  `\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2},?\s+(?:19|20)\d{2}\b`,
	},
	{
		Category: "NAME",
		Pattern:  `\b(?:Dr|Mr|Mrs|Ms|Prof)\.\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`,
	},
	{
		Category:        "NAME",
		Pattern:         `\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`,
		ContextPattern:  `(?i)\b(?:patient|name|guardian|next\s+of\s+kin)\b`,
		ContextRequired: true,
	},
	{
		Category: "ADDRESS",
		Pattern:  `\b\d{1,5}\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Way)\b`,
	},
	{
		Category:        "ADDRESS",
		Pattern:         `\b\d{5}(?:-\d{4})?\b`,
		ContextPattern:  `(?i)\b(?:address|city|state|zip)\b`,
		ContextRequired: true,
	},
	{
		Category:        "HEALTH_PLAN",
		Pattern:         `\b[A-Z]{1,3}\d{6,12}\b`,
		ContextPattern:  `(?i)\b(?:member|policy|plan|insurance|subscriber|group\s+number)\b`,
		ContextRequired: true,
	},
	{
		Category:  "ACCOUNT",
		Pattern:   `\b(?:\d[ -]?){13,16}\b`,
		Validator: "luhn",
	},
	{
		Category:        "ACCOUNT",
		Pattern:         `\b\d{8,17}\b`,
		ContextPattern:  `(?i)\b(?:account|acct|billing)\b`,
		ContextRequired: true,
	},
	{
		Category:        "CERTIFICATE",
		Pattern:         `\b[A-Z]{1,2}\d{6,8}\b`,
		ContextPattern:  `(?i)\b(?:license|licence|certificate|certification)\b`,
		ContextRequired: true,
	},
	{
		Category:  "VEHICLE_ID",
		Pattern:   `\b[A-HJ-NPR-Z0-9]{17}\b`,
		Validator: "vin",
	},
	{
		Category:        "DEVICE_ID",
		Pattern:         `\b[A-Z0-9-]{8,18}\b`,
		ContextPattern:  `(?i)\b(?:serial|device|implant|udi|pacemaker)\b`,
		ContextRequired: true,
		Validator:       "alnum_mixed",
	},
	{
		Category: "URL",
		Pattern:  `\bhttps?://[^\s<>"')]+`,
	},
	{
		Category: "IP_ADDRESS",
		Pattern:  `\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`,
	},
	{
		Category: "BIOMETRIC",
		Pattern:  `(?i)\b(?:fingerprint|retinal\s+scan|iris\s+scan|voice\s*print|palm\s+print)\b`,
	},
	{
		Category: "PHOTO",
		Pattern:  `(?i)\b(?:photograph|photo|image)\s+of\s+(?:the\s+)?patient\b`,
	},
}
