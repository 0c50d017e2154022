package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the storefront display name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback storefront display name.
	DefaultSiteName = "Lumenshop"
	// ExpiryReminderDaysKey controls how many days before expiry the
	// reminder email fires.
	ExpiryReminderDaysKey = "EXPIRY_REMINDER_DAYS"
	// DefaultExpiryReminderDays is the fallback reminder window in days.
	DefaultExpiryReminderDays = 7
	// SweepIntervalMinutesKey controls the delivery/reminder sweep interval.
	SweepIntervalMinutesKey = "SWEEP_INTERVAL_MINUTES"
	// DefaultSweepIntervalMinutes is the fallback sweep interval.
	DefaultSweepIntervalMinutes = 60
)
