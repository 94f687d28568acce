package live

import (
	"testing"
	"time"
)

func TestHub_DisconnectAfterStop(t *testing.T) {
	h := NewHub()
	go h.Run()
	h.Stop()

	// После остановки цикл Run канал unregister не читает:
	// отключение клиента должно завершиться по done, а не повиснуть
	c := &Client{hub: h, send: make(chan []byte, 1), recordingID: 1}

	done := make(chan struct{})
	go func() {
		c.disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Disconnect after hub stop must not block")
	}
}

func TestHub_StopReleasesClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 1), recordingID: 7}
	h.register <- c

	h.Stop()

	// Оставшийся канал send закрывается, writePump завершается
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatalf("Expected closed send channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatalf("Send channel must be closed on hub stop")
	}
}
