package config

import "time"

// PermsCode - Minimal perms code for the bot to work
const PermsCode int64 = 1099914223686

// RollLength - Length of a valid roll number
const RollLength int = 8

// OTPLength - Length of a generated verification code
const OTPLength int = 5

// OTPCharset - Characters used for verification codes. Digits appear twice so
// codes skew numeric.
const OTPCharset string = "01234567890123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// VerifiedRoleName - Name of the role that marks an already verified member
const VerifiedRoleName string = "verified"

// AuditWindow - How close to the departure an audit entry must be to count
const AuditWindow time.Duration = time.Second

// AuditFetchLimit - Number of recent audit entries inspected on departure
const AuditFetchLimit int = 50

// VerifyButtonID - Component ID of the verification button
const VerifyButtonID string = "verification-button"

// VerifyModalID - Component ID of the verification modal
const VerifyModalID string = "verification-modal"

// DefaultPrefix - Command prefix used when a guild has not set one
const DefaultPrefix string = "%"

// DefaultLocale - Locale used when a guild has not set one
const DefaultLocale string = "en"
