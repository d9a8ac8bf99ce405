package i18n

// Codes are repeated as strings here because the errors package imports i18n.
// INVALID_NOTATION has no template: the parser's own message is shown as is.
var enUSMessages = map[string]string{
	"NOTATION_AND_PRESET":  "Send either a dice notation or a preset name, not both.",
	"EXPLODE_LIMIT":        "The exploding dice in {{.Notation}} kept rolling their maximum face; try again.",
	"INVALID_REQUEST_BODY": "The request could not be read: {{.Detail}}.",
	"PRESET_NOT_FOUND":     `No preset named "{{.Name}}".`,
	"SEED_OUT_OF_RANGE":    "Replay seeds must be between 0 and 9223372036854775807.",
	"INVALID_ROLL_MODE":    `Unknown roll mode "{{.Mode}}". Use LIVE or REPLAY.`,
	"NOT_FOUND":            "The requested item was not found.",
}
