// Пакет s3mock — S3-совместимый HTTP-сервер в памяти для тестов.
// Проверяет подпись SigV4 каждого запроса и хранит объекты с заголовками.
package s3mock

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/flashshare/internal/sigv4"
)

// Object — сохранённый объект.
type Object struct {
	Data   []byte
	Header http.Header
}

// Server — http.Handler, имитирующий path-style S3 API.
type Server struct {
	creds  sigv4.Credentials
	region string

	mu      sync.Mutex
	objects map[string]Object
	// failStatus — если не 0, любой подписанный запрос завершается этим статусом
	failStatus int
	failBody   string
	rejected   int
}

// New создаёт сервер, принимающий подписи указанных учётных данных.
func New(creds sigv4.Credentials, region string) *Server {
	if region == "" {
		region = sigv4.DefaultRegion
	}
	return &Server{
		creds:   creds,
		region:  region,
		objects: make(map[string]Object),
	}
}

// FailWith заставляет сервер отвечать статусом status и телом body.
// status == 0 отключает режим отказа.
func (s *Server) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failBody = body
}

// Object возвращает объект по пути /bucket/key.
func (s *Server) Object(path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Len — число хранимых объектов.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Rejected — число запросов с неверной подписью.
func (s *Server) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.verify(r, body) {
		s.rejected++
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "<Error><Code>SignatureDoesNotMatch</Code></Error>")
		return
	}
	if s.failStatus != 0 {
		w.WriteHeader(s.failStatus)
		_, _ = io.WriteString(w, s.failBody)
		return
	}

	path := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		s.objects[path] = Object{Data: body, Header: r.Header.Clone()}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		obj, ok := s.objects[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "<Error><Code>NoSuchKey</Code></Error>")
			return
		}
		w.Header().Set("Content-Type", obj.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(obj.Data)
	case http.MethodDelete:
		if _, ok := s.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.objects, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verify пересчитывает подпись по подписанным заголовкам запроса.
func (s *Server) verify(r *http.Request, body []byte) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, sigv4.Algorithm+" ") {
		return false
	}

	sum := sha256.Sum256(body)
	if r.Header.Get(sigv4.HeaderContentSHA256) != hex.EncodeToString(sum[:]) {
		return false
	}

	signedAt, err := time.Parse("20060102T150405Z", r.Header.Get(sigv4.HeaderAmzDate))
	if err != nil {
		return false
	}

	headers := make(map[string]string)
	for _, name := range signedHeaderNames(auth) {
		if name == sigv4.HeaderHost {
			continue
		}
		headers[name] = r.Header.Get(name)
	}

	signer, err := sigv4.New(s.creds,
		sigv4.WithRegion(s.region),
		sigv4.WithClock(func() time.Time { return signedAt }),
	)
	if err != nil {
		return false
	}
	expected, err := signer.Sign(r.Method, "http://"+r.Host+r.URL.RequestURI(), headers, body)
	if err != nil {
		return false
	}
	return expected[sigv4.HeaderAuthorization] == auth
}

func signedHeaderNames(auth string) []string {
	for _, part := range strings.Split(auth, ", ") {
		if v, ok := strings.CutPrefix(part, "SignedHeaders="); ok {
			return strings.Split(v, ";")
		}
	}
	return nil
}
