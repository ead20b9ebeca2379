// Package logger wraps zap with the pieces the controller needs:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Components pull the logger out of their context, so every line carries
// the component name (station, ntp, gpio, supervisor, status).
package logger
