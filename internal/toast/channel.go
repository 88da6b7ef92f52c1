package toast

// Channel delivers toasts on a buffered channel for a UI loop to
// render. When the buffer is full the toast is dropped so presenters
// never block the caller.
type Channel struct {
	ch chan Toast
}

// NewChannel creates a channel presenter with the given buffer size.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 16
	}
	return &Channel{ch: make(chan Toast, size)}
}

// C returns the receive side of the channel.
func (c *Channel) C() <-chan Toast {
	return c.ch
}

func (c *Channel) send(t Toast) {
	select {
	case c.ch <- t:
	default:
		// Buffer full; drop rather than block the store.
	}
}

func (c *Channel) Success(msg string) { c.send(Toast{Variant: VariantSuccess, Message: msg}) }
func (c *Channel) Error(msg string)   { c.send(Toast{Variant: VariantError, Message: msg}) }
func (c *Channel) Warning(msg string) { c.send(Toast{Variant: VariantWarning, Message: msg}) }
func (c *Channel) Info(msg string)    { c.send(Toast{Variant: VariantInfo, Message: msg}) }
