package consul

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tolka/internal/pkg/push"
	"github.com/hashicorp/consul/api"
	"go.uber.org/multierr"
)

const (
	sendKey      = "pushURL"
	isHTTPSSLKey = "HTTPSSL"
	priorityKey  = "priority"
)

// Provider keeps a list of healthy push gateways from consul
// and spreads the load by priority
type Provider struct {
	consul  *api.Client
	srvName string

	lock *sync.RWMutex
	gws  []*gwWrap
}

type gwWrap struct {
	real     *push.Client
	srv      string
	key      string
	priority float64
}

// NewProvider creates consul service registrator
func NewProvider(cfg *api.Config, srvNameInConsul string) (*Provider, error) {
	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if srvNameInConsul == "" {
		return nil, fmt.Errorf("no srv name")
	}
	return newProvider(c, srvNameInConsul), nil
}

func newProvider(c *api.Client, srvNameInConsul string) *Provider {
	goapp.Log.Info().Str("service", srvNameInConsul).Msg("cfg: srv name in consul")
	return &Provider{consul: c, srvName: srvNameInConsul, lock: &sync.RWMutex{}, gws: make([]*gwWrap, 0)}
}

// Send delivers the push via one of the registered gateways
func (c *Provider) Send(ctx context.Context, emails []string, jobID string, payload map[string]string, text string) error {
	gw, srv, err := c.get()
	if err != nil {
		return err
	}
	if err := gw.Send(ctx, emails, jobID, payload, text); err != nil {
		return fmt.Errorf("can't send via '%s': %w", srv, err)
	}
	return nil
}

func (c *Provider) get() (*push.Client, string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if len(c.gws) == 0 {
		return nil, "", fmt.Errorf("no active push gateway")
	}
	if len(c.gws) == 1 {
		g := c.gws[0]
		return g.real, g.srv, nil
	}
	// random select by priority
	i, err := getRandomByPriority(c.gws)
	if err != nil {
		return nil, "", fmt.Errorf("can't select gateway: %v", err)
	}
	if i < len(c.gws) {
		g := c.gws[i]
		return g.real, g.srv, nil
	}
	g := c.gws[len(c.gws)-1]
	return g.real, g.srv, nil
}

func getRandomByPriority(gwWraps []*gwWrap) (int, error) {
	prMax := 0.0
	for _, gw := range gwWraps {
		prMax += gw.priority
	}
	if prMax < 0.1 {
		return 0, fmt.Errorf("wrong priority sum found %f", prMax)
	}
	rnd := rand.Float64() * prMax
	prMax = 0.0
	for i, gw := range gwWraps {
		prMax += gw.priority
		if prMax > rnd {
			return i, nil
		}
	}
	return len(gwWraps), nil
}

func (c *Provider) StartRegistryLoop(ctx context.Context, checkInterval time.Duration) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting consul service check every %v", checkInterval)
	res := make(chan struct{}, 2)
	go func() {
		defer close(res)
		c.serviceLoop(ctx, checkInterval)
	}()
	return res, nil
}

func (c *Provider) serviceLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	// run on startup
	if err := c.check(ctx); err != nil {
		goapp.Log.Error().Err(err).Send()
	}
	for {
		select {
		case <-ticker.C:
			if err := c.check(ctx); err != nil {
				goapp.Log.Error().Err(err).Send()
			}
		case <-ctx.Done():
			ticker.Stop()
			goapp.Log.Info().Msgf("Stopped consul timer service")
			return
		}
	}
}

func (c *Provider) check(ctx context.Context) error {
	ctxInt, cf := context.WithTimeout(ctx, time.Second*5)
	defer cf()
	srvs, _, err := c.consul.Health().Service(c.srvName, "", true, (&api.QueryOptions{}).WithContext(ctxInt))
	if err != nil {
		return fmt.Errorf("can't invoke consul: %v", err)
	}
	return c.updateSrv(srvs)
}

func (c *Provider) updateSrv(srvs []*api.ServiceEntry) error {
	goapp.Log.Info().Msgf("got %d services from consul", len(srvs))
	c.lock.Lock()
	defer c.lock.Unlock()
	ms := map[string]*api.ServiceEntry{}
	for _, s := range srvs {
		ms[key(s)] = s
	}
	new := []*gwWrap{}
	for _, s := range c.gws {
		if v, ok := ms[s.srv]; ok && s.key == fullKey(v) {
			new = append(new, s)
			delete(ms, s.srv)
			continue
		}
		goapp.Log.Warn().Str("service", s.srv).Msgf("dropped gateway")
	}
	if len(new) == len(c.gws) && len(ms) == 0 {
		return nil
	}
	c.gws = new
	var err error
	for v, k := range ms {
		gw, errInt := newGateway(v, k)
		if errInt != nil {
			err = multierr.Append(err, errInt)
			continue
		}
		c.gws = append(c.gws, gw)
		goapp.Log.Info().Str("service", v).Float64("priority", gw.priority).Msg("added gateway")
	}
	return err
}

func newGateway(v string, s *api.ServiceEntry) (*gwWrap, error) {
	gw, err := push.NewClient(getUrl(s, sendKey))
	if err != nil {
		return nil, fmt.Errorf("can't init gateway for %s: %v", v, err)
	}
	priority, err := getPriority(s)
	if err != nil {
		return nil, fmt.Errorf("can't init gateway for %s: %v", v, err)
	}
	res := &gwWrap{real: gw, srv: v, key: fullKey(s), priority: priority}
	return res, nil
}

func getPriority(s *api.ServiceEntry) (float64, error) {
	v, ok := s.Service.Meta[priorityKey]
	if !ok {
		return 1, nil
	}
	res, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse priority '%s': %v", v, err)
	}
	if res < 0.5 || res > 50 {
		return 0, fmt.Errorf("wrong priority value '%f', not in [0.5, 50]", res)
	}
	return res, nil
}

func getUrl(s *api.ServiceEntry, key string) string {
	v, ok := s.Service.Meta[key]
	if !ok {
		return ""
	}
	ssl := ""
	if isSSL, ok := s.Service.Meta[isHTTPSSLKey]; ok {
		if boolValue, err := strconv.ParseBool(isSSL); err == nil && boolValue {
			ssl = "s"
		}
	}
	return fmt.Sprintf("http%s://%s:%d/%s", ssl, s.Service.Address, s.Service.Port, v)
}

func key(s *api.ServiceEntry) string {
	return fmt.Sprintf("%s:%d", s.Service.Address, s.Service.Port)
}

func fullKey(s *api.ServiceEntry) string {
	res := strings.Builder{}
	for _, key := range [...]string{sendKey, isHTTPSSLKey, priorityKey} {
		v, ok := s.Service.Meta[key]
		if ok {
			res.WriteString(key + ":" + v + ",")
		}
	}
	return res.String()
}
