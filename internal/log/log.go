package log

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

var base = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Logger returns the process-wide logger for code that has no request at hand.
func Logger() *logrus.Logger { return base }

// SetOutput redirects every entry, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	old := base.Out
	base.SetOutput(w)
	return old
}

// Setup applies the level and tees output into logFile when one is given.
// The returned closer releases the file.
func Setup(level, logFile string) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	base.SetLevel(lvl)
	if logFile == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		base.Warnf("could not open log file %s: %v", logFile, err)
		return io.NopCloser(nil), nil
	}
	base.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

func entry(kind string, c *fiber.Ctx, action string, fields map[string]any) *logrus.Entry {
	e := base.WithFields(logrus.Fields{"action": action, "kind": kind})
	if len(fields) > 0 {
		e = e.WithField("fields", fields)
	}
	if c == nil {
		return e
	}
	rf := logrus.Fields{
		"ip":     c.IP(),
		"method": c.Method(),
		"path":   c.Path(),
		"status": c.Response().StatusCode(),
	}
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		rf["req_id"] = rid
	}
	if id, ok := c.Locals("identity").(domain.Identity); ok && id.Authenticated() {
		rf["user_id"] = id.UserID
	}
	return e.WithFields(rf)
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	entry("info", c, action, fields).Info(action)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	entry("audit", c, action, fields).Info(action)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	entry("security", c, action, fields).Warn(action)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	e := entry("error", c, action, fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(action)
}
