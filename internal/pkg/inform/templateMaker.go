package inform

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jordan-wright/email"
	"github.com/spf13/viper"
)

// templateEmailMaker renders emails from template files.
// One file per message type: <dir>/<msgType>.tmpl, executed with Data
type templateEmailMaker struct {
	from      string
	subjects  map[string]string
	templates *template.Template
}

// NewTemplateEmailMaker creates the maker from config
func NewTemplateEmailMaker(c *viper.Viper) (*templateEmailMaker, error) {
	res := &templateEmailMaker{}
	res.from = c.GetString("mail.from")
	if res.from == "" {
		return nil, fmt.Errorf("no mail.from")
	}
	dir := c.GetString("mail.templateDir")
	if dir == "" {
		return nil, fmt.Errorf("no mail.templateDir")
	}
	var err error
	res.templates, err = template.ParseGlob(filepath.Join(dir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("can't parse templates: %w", err)
	}
	res.subjects = c.GetStringMapString("mail.subjects")
	goapp.Log.Info().Str("from", res.from).Str("dir", dir).Msg("email maker")
	return res, nil
}

// Make prepares one email
func (m *templateEmailMaker) Make(data *Data) (*email.Email, error) {
	tmpl := m.templates.Lookup(data.MsgType + ".tmpl")
	if tmpl == nil {
		return nil, fmt.Errorf("no template for '%s'", data.MsgType)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("can't render email: %w", err)
	}
	res := email.NewEmail()
	res.From = m.from
	res.To = []string{data.Email}
	res.Subject = m.subject(data.MsgType)
	res.Text = body.Bytes()
	return res, nil
}

func (m *templateEmailMaker) subject(msgType string) string {
	if s, ok := m.subjects[msgType]; ok {
		return s
	}
	return "Tolka bokning"
}
