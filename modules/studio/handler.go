package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"skagen-studio-server/modules/common/library"
	"skagen-studio-server/modules/common/thumbnail"
)

const maxFormMemory = 64 << 20

// Handler exposes the pipeline and the swatch library over HTTP.
type Handler struct {
	service    *Service
	library    *library.Library
	thumbnails *thumbnail.Cache
	thumbWidth int
}

// NewHandler - HTTP 핸들러 생성
func NewHandler(service *Service, lib *library.Library, thumbnails *thumbnail.Cache, thumbWidth int) *Handler {
	return &Handler{
		service:    service,
		library:    lib,
		thumbnails: thumbnails,
		thumbWidth: thumbWidth,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/models", h.HandleModels).Methods("GET")
	r.HandleFunc("/api/presets", h.HandlePresets).Methods("GET")
	r.HandleFunc("/api/swatches/{material}", h.HandleSwatches).Methods("GET")
	r.HandleFunc("/api/swatches/{material}/{name}/thumbnail", h.HandleThumbnail).Methods("GET")
	r.HandleFunc("/api/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	log.Info().Msg("✅ Studio routes registered: /api/models, /api/presets, /api/swatches, /api/generate")
}

// HandleModels - GET /api/models
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"default": h.service.defaultModel,
		"presets": h.service.presets,
	})
}

// HandlePresets - GET /api/presets
func (h *Handler) HandlePresets(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"presets":   InteriorPresets,
		"materials": library.Materials(),
	})
}

// HandleSwatches - GET /api/swatches/{material}
func (h *Handler) HandleSwatches(w http.ResponseWriter, r *http.Request) {
	material := mux.Vars(r)["material"]
	names, err := h.library.List(material)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"material": material,
		"swatches": names,
	})
}

// HandleThumbnail - GET /api/swatches/{material}/{name}/thumbnail?width=N
func (h *Handler) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	width := h.thumbWidth
	if s := r.URL.Query().Get("width"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 || parsed > 2000 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: width must be between 1 and 2000", ErrValidation))
			return
		}
		width = parsed
	}

	path, err := h.library.Path(vars["material"], vars["name"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	encoded, err := h.thumbnails.Get(path, width)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"material": vars["material"],
		"name":     vars["name"],
		"width":    width,
		"data_url": thumbnail.DataURL(encoded),
	})
}

// HandleGenerate - POST /api/generate (multipart/form-data, synchronous)
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	in, err := ParseGenerateForm(r, h.library)
	if err != nil {
		log.Warn().Err(err).Msg("❌ Invalid generate request")
		model, _ := h.service.ResolveModel(r.FormValue("model"))
		if model == "" {
			model = h.service.defaultModel
		}
		WriteJSON(w, statusFor(err), &GenerationResult{Success: false, ModelUsed: model, Error: err.Error()})
		return
	}

	result, err := h.service.Generate(r.Context(), in)
	if err != nil {
		WriteJSON(w, statusFor(err), result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ParseGenerateForm reads a multipart generate request. Swatches may be
// uploaded ("target", "current") or picked from the library
// ("target_material" + "target_swatch", "current_material" + "current_swatch").
func ParseGenerateForm(r *http.Request, lib *library.Library) (*GenerateInput, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, fmt.Errorf("%w: invalid multipart form: %v", ErrValidation, err)
	}
	form := r.MultipartForm

	preset, err := ParseInteriorPreset(r.FormValue("interior_preset"))
	if err != nil {
		return nil, err
	}

	in := &GenerateInput{
		InteriorPreset: preset,
		Prompt:         r.FormValue("prompt"),
		ModelPreset:    r.FormValue("model"),
	}

	if in.Products, err = readFiles(form, "products"); err != nil {
		return nil, err
	}
	if in.InteriorRefs, err = readFiles(form, "interior_refs"); err != nil {
		return nil, err
	}
	if in.HumanRefs, err = readFiles(form, "human_refs"); err != nil {
		return nil, err
	}
	if in.Target, err = readSwatch(r, form, lib, "target"); err != nil {
		return nil, err
	}
	if in.CurrentColor, err = readSwatch(r, form, lib, "current"); err != nil {
		return nil, err
	}
	return in, nil
}

func readFiles(form *multipart.Form, key string) ([]ImageAsset, error) {
	var assets []ImageAsset
	for _, fh := range form.File[key] {
		data, err := readFileHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrValidation, fh.Filename, err)
		}
		assets = append(assets, NewImageAsset(fh.Filename, data))
	}
	return assets, nil
}

func readSwatch(r *http.Request, form *multipart.Form, lib *library.Library, prefix string) (*ImageAsset, error) {
	if files := form.File[prefix]; len(files) > 0 {
		data, err := readFileHeader(files[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrValidation, files[0].Filename, err)
		}
		asset := NewImageAsset(files[0].Filename, data)
		return &asset, nil
	}

	material := r.FormValue(prefix + "_material")
	name := r.FormValue(prefix + "_swatch")
	if name == "" {
		return nil, nil
	}
	if material == "" {
		material = library.MaterialFabric
	}
	data, err := lib.Read(material, name)
	if err != nil {
		return nil, err
	}
	asset := NewImageAsset(material+"/"+name, data)
	return &asset, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound), errors.Is(err, thumbnail.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, library.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRetriesExhausted), errors.Is(err, ErrNoImageData):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response and logs encoding failures.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("❌ Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
