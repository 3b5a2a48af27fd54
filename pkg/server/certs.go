package server

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var errNoCertificate = errors.New("no TLS certificate loaded")

// CertReloader serves the key pair at certPath/keyPath and swaps it in place
// whenever either file changes on disk.
type CertReloader struct {
	certPath string
	keyPath  string
	log      *zap.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewCertReloader loads the pair once; a bad pair at startup is fatal.
func NewCertReloader(certPath, keyPath string, log *zap.Logger) (*CertReloader, error) {
	r := &CertReloader{certPath: certPath, keyPath: keyPath, log: log.Named("tls")}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cert == nil {
		return nil, errNoCertificate
	}
	return r.cert, nil
}

func (r *CertReloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Watch reloads on write, create or rename until ctx is cancelled. A failed
// reload keeps serving the previous pair.
func (r *CertReloader) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.log.Error("cert watcher unavailable", zap.Error(err))
		return
	}
	defer watcher.Close()

	for _, p := range []string{r.certPath, r.keyPath} {
		if err := watcher.Add(p); err != nil {
			r.log.Warn("cannot watch file", zap.String("path", p), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.log.Error("certificate reload failed", zap.String("file", ev.Name), zap.Error(err))
				continue
			}
			r.log.Info("certificate reloaded", zap.String("file", ev.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn("cert watcher error", zap.Error(err))
		}
	}
}
