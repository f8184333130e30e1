package builtin

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/errs"
)

func (b *builtins) registerNet(e *engine.Engine) {
	b.add(e, "download", "download <url> [name]", b.download)
}

// download fetches url into the working directory on a background worker.
// A failed or non-2xx download leaves no partial file behind.
func (b *builtins) download(c *engine.Call) error {
	args, err := c.Args()
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return b.usage("download")
	}
	raw := args[0]
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.Usagef("download", "invalid URL %q", raw)
	}
	name := path.Base(u.Path)
	if len(args) == 2 {
		name = args[1]
	}
	if name == "" || name == "." || name == "/" {
		name = "download"
	}

	s := c.Session
	dest := s.Resolve(name)
	ctx := c.Ctx
	s.Add(fmt.Sprintf("Downloading %s ...", raw))
	s.Go(func() {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			s.Add(errs.Env("download", err).Error())
			return
		}
		resp, err := b.HTTP.R().SetContext(ctx).SetOutput(dest).Get(raw)
		if err != nil {
			os.Remove(dest)
			s.Add(errs.Network("download", err).Error())
			return
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			os.Remove(dest)
			s.Add(errs.Network("download", fmt.Errorf("HTTP %d", resp.StatusCode())).Error())
			return
		}
		size := int64(-1)
		if info, err := os.Stat(dest); err == nil {
			size = info.Size()
		}
		b.Log.Info("download complete", zap.String("url", raw), zap.String("dest", dest), zap.Int64("bytes", size))
		s.Add(fmt.Sprintf("Saved %s (%d bytes)", strings.TrimPrefix(dest, s.Cwd()+string(filepath.Separator)), size))
	})
	return nil
}
