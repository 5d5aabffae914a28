package middleware

import tele "gopkg.in/telebot.v4"

// PrivateOnlyMiddleware ignores updates from groups and channels.
// Sessions, quotas and winner notices all assume chat id equals user id.
func PrivateOnlyMiddleware(onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || chat.Type == tele.ChatPrivate {
				return next(c)
			}
			if onReject != nil {
				return onReject(c)
			}
			return nil
		}
	}
}
