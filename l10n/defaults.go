package l10n

// defaults is the compiled-in English bundle.
var defaults = map[string]string{
	// Onboarding
	"welcome-message":          "Welcome to the server, {$user}!",
	"verify-instruction-email": "{$member}, a verification code has to be emailed to you before you can access this server. Head over to {$cmd_ch} and press the Verify button.",
	"verify-instruction-basic": "{$member}, please verify your roll number in {$cmd_ch} to access this server.",
	"incorrect-server":         "This server is not meant for your batch. Please join the server for your own batch.",

	// Offboarding
	"leave-reason": "\nReason: {$reason}",

	// Verification flow
	"verify-already-verified": "You are already verified on this server.",
	"verify-in-progress":      "You already have a verification in progress. Reply with the code that was emailed to you.",
	"verify-not-found":        "Roll number `{$roll}` was not found. Please re-check it and try again.",
	"verify-wrong-batch":      "Roll number `{$roll}` belongs to a different batch than this server admits.",
	"verify-email-sent":       "A verification code has been sent to your institute email. Reply with it in this channel.",
	"verify-otp-incorrect":    "`{$code}` is incorrect. Please try again with the correct code.",
	"verify-success":          "{$member} has been verified. Welcome!",
	"verify-abandoned":        "Verification timed out or ran out of attempts. Press the Verify button to start over.",
	"verify-error":            "Something went wrong during verification. Please try again later.",

	// Command errors
	"UserInputError-MissingRequiredArgument": "Missing required argument `{$arg}`.",
	"UserInputError-BadArgument":             "`{$arg}` could not be understood: {$detail}",
	"UserInputError-BadUnionArgument":        "`{$arg}` did not match any accepted form: {$detail}",
	"CheckFailure-NotOwner":                  "Only the bot owner may use this command.",
	"CheckFailure-MissingPermissions":        "You are missing the {$perms} permission(s) to run this command.",
	"CheckFailure-BotMissingPermissions":     "I am missing the {$perms} permission(s) to run this command.",
	"CheckFailure-MissingAnyRole":            "You need at least one of the following roles to run this command: {$roles}",
	"CommandOnCooldown":                      "This command is on cooldown. Retry in {$retry}.",
	"CommandInvokeError-Forbidden":           "I do not have permission to perform a part of this command.",
	"CommandInvokeError-Extension":           "Extension failure: {$detail}",
	"CommandError-Generic":                   "Something went wrong while running that command.",

	// Commands
	"help-title":       "Commands Help!",
	"help-hint":        "For help with a specific command, type `{$prefix}help <command>`",
	"help-aliases":     "Aliases",
	"help-unknown":     "no such command exists",
	"ping-response":    "Pong! Uptime: {$uptime}, gateway latency: {$latency}.",
	"prefix-updated":   "Command prefix for this server is now `{$prefix}`.",
	"locale-updated":   "Language for this server is now `{$locale}`.",
	"locale-unknown":   "`{$locale}` is not a supported language.",
	"setup-complete":   "Verification button posted in {$channel}.",
	"verify-prompt":    "Press the button below to verify your roll number and unlock this server.",
	"verify-button":    "Verify",
	"verify-modal":     "Verification",
	"verify-roll-hint": "Roll Number",
}
