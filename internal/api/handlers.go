package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

func (s *Server) handleProject(c *gin.Context) {
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) projectResponse() ProjectResponse {
	return ProjectResponse{Status: s.director.Status(), Project: s.director.Snapshot()}
}

func (s *Server) handleIdea(c *gin.Context) {
	var req IdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid idea payload", err)
		return
	}
	if err := s.director.SetIdea(req.Idea); err != nil {
		writeError(c, err)
		return
	}
	if req.ProjectName != nil {
		if err := s.director.SetProjectName(*req.ProjectName); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.projectResponse())
}

// handleSettings parses every field before applying any, so a bad value
// leaves the state untouched.
func (s *Server) handleSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid settings payload", err)
		return
	}

	var apply []func() error
	if req.GridSize != nil {
		n := *req.GridSize
		if err := project.ValidateGridSize(n); err != nil {
			writeError(c, err)
			return
		}
		apply = append(apply, func() error { return s.director.SetGridSize(n) })
	}
	if req.CandidateCount != nil {
		n := *req.CandidateCount
		if err := project.ValidateCandidateCount(n); err != nil {
			writeError(c, err)
			return
		}
		apply = append(apply, func() error { return s.director.SetCandidateCount(n) })
	}
	if req.AspectRatio != nil {
		ratio, err := project.ParseAspectRatio(*req.AspectRatio)
		if err != nil {
			writeError(c, err)
			return
		}
		apply = append(apply, func() error { return s.director.SetAspectRatio(ratio) })
	}
	if req.Resolution != nil {
		res, err := project.ParseResolution(*req.Resolution)
		if err != nil {
			writeError(c, err)
			return
		}
		apply = append(apply, func() error { return s.director.SetResolution(res) })
	}
	if req.GridResolution != nil {
		res, err := project.ParseResolution(*req.GridResolution)
		if err != nil {
			writeError(c, err)
			return
		}
		apply = append(apply, func() error { return s.director.SetGridResolution(res) })
	}
	if req.CameraShots != nil {
		shots := make([]project.CameraShot, 0, len(*req.CameraShots))
		for _, value := range *req.CameraShots {
			shot, err := project.ParseCameraShot(value)
			if err != nil {
				writeError(c, err)
				return
			}
			shots = append(shots, shot)
		}
		apply = append(apply, func() error { return s.director.SetCameraShots(shots) })
	}
	if req.RefImages != nil {
		images := *req.RefImages
		apply = append(apply, func() error { return s.director.SetRefImages(images) })
	}

	for _, fn := range apply {
		if err := fn(); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.projectResponse())
}

// handleStyle clears append or override text before setting the other, so
// one request can switch between them.
func (s *Server) handleStyle(c *gin.Context) {
	var req StyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid style payload", err)
		return
	}
	if req.Mode != nil {
		mode, err := project.ParseStyleMode(*req.Mode)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := s.director.SetStyleMode(mode); err != nil {
			writeError(c, err)
			return
		}
	}

	type step struct {
		value *string
		set   func(string) error
	}
	steps := []step{
		{req.CustomPositive, s.director.SetCustomPositive},
		{req.CustomNegative, s.director.SetStyleNegative},
		{req.CustomAppend, s.director.SetStyleAppend},
		{req.CustomOverride, s.director.SetStyleOverride},
	}
	for _, clearing := range []bool{true, false} {
		for _, st := range steps {
			if st.value == nil || (*st.value == "") != clearing {
				continue
			}
			if err := st.set(*st.value); err != nil {
				writeError(c, err)
				return
			}
		}
	}
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handleEditShot(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req ShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid shot payload", err)
		return
	}
	if err := s.director.EditShot(index, req.Description); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handleGenerate(c *gin.Context) {
	if err := s.director.Generate(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handleSelect(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := s.director.Select(index); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.director.Status())
}

func (s *Server) handleDirect(c *gin.Context) {
	result, err := s.director.Direct(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, historyEntries(s.director.History()))
}

func (s *Server) handleRestore(c *gin.Context) {
	if err := s.director.Restore(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handlePanelPrompt(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	transfer, err := s.director.SendToEditor(c.Request.Context(), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

func (s *Server) handleEditorRender(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid editor payload", err)
		return
	}
	edit := director.EditRequest{Panel: req.Panel, Prompt: req.Prompt, RefImages: req.RefImages}
	for _, value := range req.CameraShots {
		shot, err := project.ParseCameraShot(value)
		if err != nil {
			writeError(c, err)
			return
		}
		edit.CameraShots = append(edit.CameraShots, shot)
	}
	if req.AspectRatio != "" {
		aspect, err := project.ParseAspectRatio(req.AspectRatio)
		if err != nil {
			writeError(c, err)
			return
		}
		edit.AspectRatio = aspect
	}
	if req.Resolution != "" {
		resolution, err := project.ParseResolution(req.Resolution)
		if err != nil {
			writeError(c, err)
			return
		}
		edit.Resolution = resolution
	}
	result, err := s.director.RenderEdit(c.Request.Context(), edit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSave(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid save payload", err)
		return
	}
	dest, err := persistence.ParseDestination(req.Destination)
	if err != nil {
		writeError(c, err)
		return
	}
	if dest == persistence.DestinationNone {
		writeError(c, services.Wrap(services.ErrMissingInput, "api", "save", "destination is required", nil))
		return
	}
	result, err := s.router.Save(c.Request.Context(), s.director.Snapshot(), dest)
	if err != nil {
		writeError(c, err)
		return
	}
	s.adoptDestination(dest)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLoadLocal(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid folder payload", err)
		return
	}
	state, found, err := s.router.OpenLocal(c.Request.Context(), req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	s.adoptDestination(persistence.DestinationLocal)
	if !found {
		writeError(c, services.Wrap(services.ErrNotFound, "api", "load local", "no project manifest in folder", nil))
		return
	}
	s.director.Load(state)
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handleImport(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid import payload", err)
		return
	}
	state, err := s.router.Import(c.Request.Context(), req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	s.director.Load(state)
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handleCloudFiles(c *gin.Context) {
	files, err := s.router.ListCloud(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if files == nil {
		files = []persistence.CloudFile{}
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleCloudLoad(c *gin.Context) {
	state, err := s.router.LoadCloud(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	s.adoptDestination(persistence.DestinationCloud)
	s.director.Load(state)
	c.JSON(http.StatusOK, s.projectResponse())
}

func (s *Server) handleExport(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid export payload", err)
		return
	}
	result, err := s.router.Export(c.Request.Context(), s.director.Snapshot(), req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// adoptDestination points autosave at a destination the user just chose.
func (s *Server) adoptDestination(dest persistence.Destination) {
	if s.autosave != nil && dest.Autosavable() {
		s.autosave.SetDestination(dest)
	}
}

func indexParam(c *gin.Context) (int, bool) {
	raw := c.Param("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "index must be an integer", err)
		return 0, false
	}
	return index, true
}
