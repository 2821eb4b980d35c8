package core

import "github.com/zsiec/framegraph/plugin"

// RegisterPlugin adds p to the Core's plugin registry. Pixel/sample
// format tables are a deliberately out-of-scope collaborator: a Core
// does not own a format registry, only the plugin/function surface
// filters register themselves through.
func (c *Core) RegisterPlugin(p *plugin.Plugin) error {
	return c.plugins.Register(p)
}
