package websocket

// ServeWs runs the client until the stream ends or the peer leaves. It blocks,
// as the websocket handler must not return while the connection is in use.
func ServeWs(client *Client) {
	client.Hub.add(client)
	defer client.Hub.remove(client)

	writeDone := make(chan struct{})
	go func() {
		client.writePump()
		close(writeDone)
	}()
	client.readPump()
	<-writeDone
}
