package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/platform"
	"go.uber.org/zap"
)

// ErrReadTimeout is the cause recorded when a read gets no data within
// Config.ReadTimeout.
var ErrReadTimeout = errors.New("read timeout")

// ReasonConnectivityLost is the failure reason when the WiFi check fails.
const ReasonConnectivityLost = "wifi connection went away"

// Probe is one throttled download that watches WiFi reachability between
// chunks. It is started once per acquire cycle and stopped through its context.
type Probe struct {
	gox.CrossFunction
	logger       *zap.Logger
	config       Config
	client       *http.Client
	connectivity platform.Connectivity

	// OnProgress, when set, is called after each chunk with an InProgress result.
	OnProgress func(Result)
}

func NewProbe(cf gox.CrossFunction, logger *zap.Logger, config Config, connectivity platform.Connectivity) *Probe {
	config.SetupDefault()
	dialer := &net.Dialer{Timeout: config.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   config.ConnectTimeout,
		ResponseHeaderTimeout: config.ReadTimeout,
		DisableCompression:    true,
	}
	return &Probe{
		CrossFunction: cf,
		logger:        logger.Named("probe"),
		config:        config,
		client:        &http.Client{Transport: transport},
		connectivity:  connectivity,
	}
}

func (p *Probe) Config() Config {
	return p.config
}

// Run downloads until the stream ends, a check fails, or ctx is cancelled. It
// never returns an InProgress result.
func (p *Probe) Run(ctx context.Context) Result {
	var transferred int64

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return p.transportFailure(transferred, errors.Wrap(err, "bad probe url %s", p.config.URL))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return p.cancelled(transferred)
		}
		return p.transportFailure(transferred, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.transportFailure(transferred, fmt.Errorf("unexpected HTTP status %s", resp.Status))
	}

	chunkSize := p.config.ChunkSize()
	buffer := make([]byte, chunkSize)
	p.logger.Info("download started", zap.String("url", p.config.URL), zap.Int("chunkSize", chunkSize))

	body := &idleReader{r: resp.Body, timeout: p.config.ReadTimeout, cancel: cancel}
	for {
		n, err := io.ReadFull(body, buffer)
		transferred += int64(n)

		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return p.completed(transferred)
		case err != nil:
			if ctx.Err() != nil {
				return p.cancelled(transferred)
			}
			return p.transportFailure(transferred, err)
		}

		progress := Result{Status: InProgress, BytesTransferred: transferred, At: p.Now()}
		p.logger.Debug("downloading file", zap.Int64("bytesTransferred", transferred))
		if p.OnProgress != nil {
			p.OnProgress(progress)
		}

		// Best effort pacing, can only make the rate slower than the target
		if !pause(ctx, p.config.ChunkInterval) {
			return p.cancelled(transferred)
		}

		state, err := p.connectivity.WifiState(ctx, p.config.Interface)
		if err != nil {
			if ctx.Err() != nil {
				return p.cancelled(transferred)
			}
			return p.transportFailure(transferred, errors.Wrap(err, "connectivity query failed"))
		}
		if !state.Up() {
			return p.connectivityLost(transferred, state)
		}
	}
}

func (p *Probe) connectivityLost(transferred int64, state platform.WifiState) Result {
	r := Result{
		Status:           Failed,
		Kind:             KindConnectivityLost,
		Reason:           ReasonConnectivityLost,
		BytesTransferred: transferred,
		At:               p.Now(),
	}
	p.logger.Error("file download failed", zap.String("kind", r.Kind.String()), zap.Bool("available", state.Available),
		zap.Bool("connected", state.Connected), zap.Int64("bytesTransferred", transferred), zap.Time("at", r.At))
	return r
}

func (p *Probe) transportFailure(transferred int64, err error) Result {
	r := Result{
		Status:           Failed,
		Kind:             KindTransport,
		Reason:           err.Error(),
		BytesTransferred: transferred,
		At:               p.Now(),
		Err:              err,
	}
	p.logger.Warn("file download failed", zap.String("kind", r.Kind.String()), zap.Error(err),
		zap.Int64("bytesTransferred", transferred), zap.Time("at", r.At))
	return r
}

func (p *Probe) completed(transferred int64) Result {
	r := Result{Status: Completed, BytesTransferred: transferred, At: p.Now()}
	p.logger.Info("file download completed", zap.Int64("bytesTransferred", transferred))
	return r
}

func (p *Probe) cancelled(transferred int64) Result {
	r := Result{Status: Cancelled, BytesTransferred: transferred, At: p.Now()}
	p.logger.Info("file download cancelled", zap.Int64("bytesTransferred", transferred))
	return r
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// idleReader fails any single Read that takes longer than timeout. The
// deadline is re-armed per Read, so a slow but steady stream never trips it.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	cancel  context.CancelCauseFunc
}

func (i *idleReader) Read(b []byte) (int, error) {
	timer := time.AfterFunc(i.timeout, func() { i.cancel(ErrReadTimeout) })
	n, err := i.r.Read(b)
	if !timer.Stop() {
		// The request is already cancelled, later reads cannot succeed
		return n, fmt.Errorf("no data for %s: %w", i.timeout, ErrReadTimeout)
	}
	return n, err
}
