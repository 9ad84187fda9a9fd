package consul

import (
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
)

func Test_get_empty(t *testing.T) {
	p := newProvider(nil, "push-gw")
	gw, name, err := p.get()
	assert.Nil(t, gw)
	assert.Equal(t, "", name)
	assert.NotNil(t, err)
}

func Test_get_single(t *testing.T) {
	p := newProvider(nil, "push-gw")
	gw := &gwWrap{real: nil, srv: "olia", priority: 1}
	p.gws = append(p.gws, gw)
	_, name, err := p.get()
	assert.Equal(t, "olia", name)
	assert.Nil(t, err)
}

func Test_get_by_priority(t *testing.T) {
	p := newProvider(nil, "push-gw")
	p.gws = append(p.gws, &gwWrap{srv: "olia", priority: 1})
	p.gws = append(p.gws, &gwWrap{srv: "olia1", priority: 1})
	for i := 0; i < 20; i++ {
		_, name, err := p.get()
		assert.Nil(t, err)
		assert.Contains(t, []string{"olia", "olia1"}, name)
	}
}

func Test_getRandomByPriority_fails(t *testing.T) {
	_, err := getRandomByPriority([]*gwWrap{{srv: "olia", priority: 0}})
	assert.NotNil(t, err)
}

func TestProvider_updateSrv_no_meta(t *testing.T) {
	p := newProvider(nil, "push-gw")
	err := p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv", Meta: map[string]string{}}}})
	assert.NotNil(t, err)
}

func TestProvider_updateSrv_adds(t *testing.T) {
	p := newProvider(nil, "push-gw")
	err := p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
		Meta: map[string]string{"pushURL": "send"}}}})
	assert.Nil(t, err)
	assert.Equal(t, 1, len(p.gws))
}

func TestProvider_updateSrv_addsSame(t *testing.T) {
	p := newProvider(nil, "push-gw")
	err := p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
		Meta: map[string]string{"pushURL": "send"}}}})
	assert.Nil(t, err)
	assert.Equal(t, 1, len(p.gws))
	cp := p.gws[0]
	err = p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
		Meta: map[string]string{"pushURL": "send"}}}})
	assert.Nil(t, err)
	assert.Equal(t, 1, len(p.gws))
	assert.Equal(t, cp, p.gws[0])
}

func TestProvider_updateSrv_updates(t *testing.T) {
	p := newProvider(nil, "push-gw")
	err := p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
		Meta: map[string]string{"pushURL": "send"}}}})
	assert.Nil(t, err)
	assert.Equal(t, 1, len(p.gws))
	cp := p.gws[0]
	err = p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
		Meta: map[string]string{"pushURL": "send/"}}}})
	assert.Nil(t, err)
	assert.Equal(t, 1, len(p.gws))
	assert.NotEqual(t, cp, p.gws[0])
}

func TestProvider_updateSrv_drops(t *testing.T) {
	p := newProvider(nil, "push-gw")
	err := p.updateSrv([]*api.ServiceEntry{{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
		Meta: map[string]string{"pushURL": "send"}}},
		{Service: &api.AgentService{Service: "olia", Port: 81, Address: "srv",
			Meta: map[string]string{"pushURL": "send"}}},
		{Service: &api.AgentService{Service: "olia", Port: 82, Address: "srv",
			Meta: map[string]string{"pushURL": "send"}}}})
	assert.Nil(t, err)
	assert.Equal(t, 3, len(p.gws))
	c1, c2 := p.gws[0], p.gws[2]
	err = p.updateSrv([]*api.ServiceEntry{
		{Service: &api.AgentService{Service: "olia", Port: 82, Address: "srv",
			Meta: map[string]string{"pushURL": "send"}}},
		{Service: &api.AgentService{Service: "olia", Port: 80, Address: "srv",
			Meta: map[string]string{"pushURL": "send"}}},
	})
	assert.Nil(t, err)
	assert.Equal(t, 2, len(p.gws))
	assert.Equal(t, c1, p.gws[0])
	assert.Equal(t, c2, p.gws[1])
}

func Test_getPriority(t *testing.T) {
	s := &api.ServiceEntry{Service: &api.AgentService{Meta: map[string]string{}}}
	v, err := getPriority(s)
	assert.Nil(t, err)
	assert.Equal(t, 1.0, v)
	s.Service.Meta["priority"] = "2.5"
	v, err = getPriority(s)
	assert.Nil(t, err)
	assert.Equal(t, 2.5, v)
	s.Service.Meta["priority"] = "100"
	_, err = getPriority(s)
	assert.NotNil(t, err)
	s.Service.Meta["priority"] = "olia"
	_, err = getPriority(s)
	assert.NotNil(t, err)
}

func Test_getUrl(t *testing.T) {
	s := &api.ServiceEntry{Service: &api.AgentService{Address: "srv", Port: 80,
		Meta: map[string]string{"pushURL": "send"}}}
	assert.Equal(t, "http://srv:80/send", getUrl(s, "pushURL"))
	s.Service.Meta["HTTPSSL"] = "true"
	assert.Equal(t, "https://srv:80/send", getUrl(s, "pushURL"))
	assert.Equal(t, "", getUrl(s, "other"))
}
