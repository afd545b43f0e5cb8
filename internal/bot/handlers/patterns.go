package handlers

import (
	"context"
	"slices"

	"github.com/hray3182/tildy/internal/chat"
)

// reactToPattern reacts to chatter that no trigger claimed. Only the first
// matching pattern reacts: Telegram keeps a single bot reaction per message.
func (d *Dispatcher) reactToPattern(ctx context.Context, msg *chat.Message) bool {
	if d.opts.Patterns == nil {
		return false
	}
	for _, p := range d.opts.Config.PatternReactions {
		if msg.GuildID != "" && slices.Contains(p.ExcludeGuilds, msg.GuildID) {
			continue
		}
		if !d.opts.Patterns.Match(msg.Text, p.Name) {
			continue
		}
		glyph := p.Reactions[d.opts.Pick(len(p.Reactions))]
		if err := d.opts.Chat.AddReaction(ctx, msg.Ref, glyph); err != nil {
			d.opts.Logger.Warn("failed to react", "pattern", p.Name, "glyph", glyph, "err", err)
		}
		d.opts.Logger.Debug("pattern matched", "pattern", p.Name, "message", msg.Ref.String())
		d.opts.Metrics.RecordDispatch("pattern:"+p.Name, "success")
		return true
	}
	return false
}
