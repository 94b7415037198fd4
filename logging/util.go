package logging

import "log/slog"

// LevelFromString maps a config value ("debug", "WARN", "error+2", ...)
// to a slog level. Nil or unparsable values fall back to info.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*str)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
