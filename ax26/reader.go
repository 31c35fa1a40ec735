package ax26

// readLoop reads frames from the transport until it fails or the Conn is
// closed, latching every well-formed frame into the mailbox.
func (c *Conn) readLoop() {
	defer close(c.readerDone)

	for {
		raw, err := c.transport.ReadFrame()
		if err != nil {
			select {
			case <-c.closing:
			default:
				c.logger.Error("%s: reader stopped: %v", c.local, err)
			}
			c.inbox.shutdown(err)
			return
		}

		if len(raw) < c.config.MinPacketLength {
			c.logger.Debug("%s: dropping runt of %d bytes", c.local, len(raw))
			continue
		}
		f, ok := DecodeFrame(raw)
		if !ok {
			c.logger.Debug("%s: dropping undecodable frame of %d bytes", c.local, len(raw))
			continue
		}
		c.inbox.put(f)
	}
}
