// Package logx configures zephyrbot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional per-component split files (twitch.log, youtube.log, vision.log, main.log)
package logx
