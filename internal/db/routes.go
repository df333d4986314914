package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/ctdlog/internal/calibration"
	"github.com/banshee-data/ctdlog/internal/devicelink"
	"github.com/banshee-data/ctdlog/internal/httputil"
	"github.com/banshee-data/ctdlog/internal/monitoring"
)

const (
	serialConfigsSlug = "ctd-serial-configs"
	certificatesSlug  = "ctd-certificates"

	// maxCertificateBody caps uploaded certificates, matching the file loader.
	maxCertificateBody = 1 << 20
)

// SerialConfigRequest is the body of a serial config create or update.
type SerialConfigRequest struct {
	Name          string `json:"name"`
	PortPath      string `json:"port_path"`
	BaudRate      int    `json:"baud_rate"`
	DataBits      int    `json:"data_bits"`
	StopBits      int    `json:"stop_bits"`
	Parity        string `json:"parity"`
	ReadTimeoutMs int    `json:"read_timeout_ms"`
	Enabled       bool   `json:"enabled"`
	Description   string `json:"description"`
	CertificateID *int64 `json:"certificate_id,omitempty"`
}

// attachConfigRoutes mounts the serial config and certificate endpoints:
//
//	GET    /debug/ctd-serial-configs[?enabled=1]   list
//	POST   /debug/ctd-serial-configs               create
//	GET    /debug/ctd-serial-configs/{id}          fetch
//	PUT    /debug/ctd-serial-configs/{id}          replace
//	DELETE /debug/ctd-serial-configs/{id}          delete
//	GET    /debug/ctd-certificates                 list
//	POST   /debug/ctd-certificates                 upload a certificate JSON
//	GET    /debug/ctd-certificates/{id}            fetch coefficients
//	DELETE /debug/ctd-certificates/{id}            delete
func (db *DB) attachConfigRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc(serialConfigsSlug, "stored serial port configurations", db.handleSerialConfigs)
	debug.HandleSilentFunc(serialConfigsSlug+"/", db.handleSerialConfigByID)
	debug.HandleFunc(certificatesSlug, "stored calibration certificates", db.handleCertificates)
	debug.HandleSilentFunc(certificatesSlug+"/", db.handleCertificateByID)
}

func (db *DB) handleSerialConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var configs []SerialConfig
		var err error
		if r.URL.Query().Get("enabled") == "1" {
			configs, err = db.GetEnabledSerialConfigs()
		} else {
			configs, err = db.GetSerialConfigs()
		}
		if err != nil {
			monitoring.Logf("Error fetching serial configs: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to fetch serial configurations")
			return
		}
		if configs == nil {
			configs = []SerialConfig{}
		}
		httputil.WriteJSON(w, http.StatusOK, configs)
	case http.MethodPost:
		db.handleCreateSerialConfig(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (db *DB) handleSerialConfigByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, serialConfigsSlug)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		config, err := db.GetSerialConfig(int(id))
		if err != nil {
			monitoring.Logf("Error fetching serial config %d: %v", id, err)
			httputil.Error(w, http.StatusInternalServerError, "failed to fetch serial configuration")
			return
		}
		if config == nil {
			httputil.Error(w, http.StatusNotFound, "configuration not found")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, config)
	case http.MethodPut:
		db.handleUpdateSerialConfig(w, r, int(id))
	case http.MethodDelete:
		if err := db.DeleteSerialConfig(int(id)); err != nil {
			writeStoreError(w, err, "failed to delete serial configuration")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (db *DB) handleCreateSerialConfig(w http.ResponseWriter, r *http.Request) {
	config, ok := decodeSerialConfig(w, r)
	if !ok {
		return
	}

	id, err := db.CreateSerialConfig(config)
	if err != nil {
		writeStoreError(w, err, "failed to create serial configuration")
		return
	}

	created, err := db.GetSerialConfig(int(id))
	if err != nil || created == nil {
		monitoring.Logf("Error fetching created config %d: %v", id, err)
		httputil.Error(w, http.StatusInternalServerError, "configuration created but failed to fetch")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (db *DB) handleUpdateSerialConfig(w http.ResponseWriter, r *http.Request, id int) {
	config, ok := decodeSerialConfig(w, r)
	if !ok {
		return
	}
	config.ID = id

	if err := db.UpdateSerialConfig(config); err != nil {
		writeStoreError(w, err, "failed to update serial configuration")
		return
	}

	updated, err := db.GetSerialConfig(id)
	if err != nil || updated == nil {
		monitoring.Logf("Error fetching updated config %d: %v", id, err)
		httputil.Error(w, http.StatusInternalServerError, "configuration updated but failed to fetch")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// decodeSerialConfig reads and validates a SerialConfigRequest. Port
// settings left at zero take the probe defaults.
func decodeSerialConfig(w http.ResponseWriter, r *http.Request) (*SerialConfig, bool) {
	var req SerialConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if req.Name == "" {
		httputil.Error(w, http.StatusBadRequest, "name is required")
		return nil, false
	}
	if req.PortPath == "" {
		httputil.Error(w, http.StatusBadRequest, "port path is required")
		return nil, false
	}
	if !isValidPortPath(req.PortPath) {
		httputil.Error(w, http.StatusBadRequest, "invalid port path: must start with /dev/tty, /dev/cu. or /dev/serial")
		return nil, false
	}

	opts, err := devicelink.PortOptions{
		BaudRate:      req.BaudRate,
		DataBits:      req.DataBits,
		StopBits:      req.StopBits,
		Parity:        req.Parity,
		ReadTimeoutMs: req.ReadTimeoutMs,
	}.Normalise()
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return &SerialConfig{
		Name:          req.Name,
		PortPath:      req.PortPath,
		BaudRate:      opts.BaudRate,
		DataBits:      opts.DataBits,
		StopBits:      opts.StopBits,
		Parity:        opts.Parity,
		ReadTimeoutMs: opts.ReadTimeoutMs,
		Enabled:       req.Enabled,
		Description:   req.Description,
		CertificateID: req.CertificateID,
	}, true
}

func (db *DB) handleCertificates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := db.ListCertificates()
		if err != nil {
			monitoring.Logf("Error fetching certificates: %v", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to fetch certificates")
			return
		}
		if records == nil {
			records = []CertificateRecord{}
		}
		httputil.WriteJSON(w, http.StatusOK, records)
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCertificateBody+1))
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(body) > maxCertificateBody {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "certificate too large")
			return
		}
		c, err := calibration.ParseCertificate(body)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := db.SaveCertificate(c)
		if err != nil {
			writeStoreError(w, err, "failed to save certificate")
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
	default:
		w.Header().Set("Allow", "GET, POST")
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (db *DB) handleCertificateByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, certificatesSlug)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := db.GetCertificate(id)
		if err != nil {
			monitoring.Logf("Error fetching certificate %d: %v", id, err)
			httputil.Error(w, http.StatusInternalServerError, "failed to fetch certificate")
			return
		}
		if c == nil {
			httputil.Error(w, http.StatusNotFound, "certificate not found")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		if err := db.DeleteCertificate(id); err != nil {
			writeStoreError(w, err, "failed to delete certificate")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// pathID parses the id following /debug/<slug>/.
func pathID(w http.ResponseWriter, r *http.Request, slug string) (int64, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/debug/"+slug+"/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		httputil.Error(w, http.StatusBadRequest, "missing id")
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		httputil.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", rest))
		return 0, false
	}
	return id, true
}

// writeStoreError maps a failed write to a response status.
func writeStoreError(w http.ResponseWriter, err error, msg string) {
	monitoring.Logf("%s: %v", msg, err)
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.Error(w, http.StatusNotFound, "not found")
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		httputil.Error(w, http.StatusConflict, "configuration with this name already exists")
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		httputil.Error(w, http.StatusBadRequest, "certificate_id does not reference a stored certificate")
	default:
		httputil.Error(w, http.StatusInternalServerError, msg)
	}
}

// isValidPortPath validates that a port path is in an allowed format
func isValidPortPath(path string) bool {
	return strings.HasPrefix(path, "/dev/tty") || strings.HasPrefix(path, "/dev/cu.") || strings.HasPrefix(path, "/dev/serial")
}
