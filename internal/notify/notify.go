package notify

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
)

const (
	RegisterMessageType   = "register"
	FrameReadyMessageType = "frame_ready"
)

// RegisterMessage is sent by an e-ink device to subscribe for frame_ready datagrams.
type RegisterMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

type FrameReadyMessage struct {
	Type     string `json:"type"`
	RenderID string `json:"render_id"`
	ComicID  int    `json:"comic_id"`
	ImageURL string `json:"image_url,omitempty"`
}

type Device struct {
	ID   string
	Addr *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

func (r *Registry) Register(deviceID string, addr *net.UDPAddr) {
	if deviceID == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.devices[deviceID] = Device{ID: deviceID, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	delete(r.devices, deviceID)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	return devices
}

type Server struct {
	addr     string
	registry *Registry
	logger   *log.Logger

	mu   sync.RWMutex
	conn *net.UDPConn
}

func NewServer(addr string, registry *Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{addr: addr, registry: registry, logger: logger}
}

func (s *Server) Listen() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Printf("[notify] listening on %s", conn.LocalAddr())
	return nil
}

func (s *Server) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run reads registrations until the socket is closed.
func (s *Server) Run() error {
	if s.LocalAddr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.logger.Printf("[notify] invalid message from %s: %v", addr, err)
			continue
		}
		if msg.Type != RegisterMessageType {
			continue
		}
		s.registry.Register(msg.DeviceID, addr)
		s.logger.Printf("[notify] registered device %s (%s)", msg.DeviceID, addr)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// BroadcastFrameReady tells every registered device to fetch the new frame.
func (s *Server) BroadcastFrameReady(msg FrameReadyMessage) {
	s.mu.RLock()
	running := s.conn != nil
	s.mu.RUnlock()
	if !running {
		s.logger.Printf("[notify] server not running")
		return
	}
	msg.Type = FrameReadyMessageType
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("[notify] marshal broadcast: %v", err)
		return
	}

	for _, d := range s.registry.Snapshot() {
		s.sendWithRetry(d, payload)
	}
}

func (s *Server) sendWithRetry(d Device, payload []byte) {
	if err := s.sendOnce(d, payload); err == nil {
		return
	}
	if err := s.sendOnce(d, payload); err != nil {
		s.logger.Printf("[notify] failed to notify device %s at %s: %v", d.ID, d.Addr, err)
		s.registry.Remove(d.ID)
	}
}

func (s *Server) sendOnce(d Device, payload []byte) error {
	if d.Addr == nil {
		return errors.New("missing device address")
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return net.ErrClosed
	}
	_, err := conn.WriteToUDP(payload, d.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.DeviceID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
