package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the body accepted by CreatePost.
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdatePostRequest is the body accepted by UpdatePost. Omitted fields are left unchanged.
type UpdatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// RatePostRequest is the body accepted by RatePost.
type RatePostRequest struct {
	Rating *float64 `json:"rating"`
}

// CommentPostRequest is the body accepted by CommentPost.
type CommentPostRequest struct {
	Text string `json:"text"`
}

// MessageResponse is returned by endpoints with no resource to show.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// CreatePost handles POST /api/posts
// @Summary Create a new post
// @Description Create a new blog post authored by the caller
// @Tags posts
// @Accept json
// @Produce json
// @Param request body CreatePostRequest true "Post data"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
// @Security BearerAuth
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := s.currentUser(c)
	if err != nil {
		return nil
	}

	var req CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: userID,
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Get a filtered, sorted and paginated page of posts
// @Tags posts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Posts per page" default(10)
// @Param sortBy query string false "Sort field" Enums(title, content, author, created_at, updated_at, averageRating)
// @Param sortOrder query string false "Sort direction" Enums(asc, desc)
// @Param filterByAverageRating query number false "Exact average rating"
// @Param filterByAuthor query int false "Author user id"
// @Param filterByDate query string false "Creation date range as start,end"
// @Success 200 {object} models.PostPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	criteria, err := service.ParseListQuery(service.ListQuery{
		Page:                  c.Query("page"),
		Limit:                 c.Query("limit"),
		SortBy:                c.Query("sortBy"),
		SortOrder:             c.Query("sortOrder"),
		FilterByAverageRating: c.Query("filterByAverageRating"),
		FilterByAuthor:        c.Query("filterByAuthor"),
		FilterByDate:          c.Query("filterByDate"),
	})
	if err != nil {
		return s.respondError(c, err)
	}

	page, err := s.postService.ListPosts(c.UserContext(), criteria)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Description Get a single post with its ratings and comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Update the title and/or content of a post owned by the caller
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
// @Security BearerAuth
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:  userID,
		PostID:  id,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Delete a post owned by the caller together with its ratings and comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
// @Security BearerAuth
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: userID,
		PostID: id,
	}); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(MessageResponse{Msg: models.MsgPostDeleted})
}

// RatePost handles POST /api/posts/:id/rate
// @Summary Rate a post
// @Description Add or replace the caller's rating and recompute the average
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body RatePostRequest true "Rating"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/rate [post]
// @Security BearerAuth
func (s *Server) RatePost(c *fiber.Ctx) error {
	userID, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req RatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.RatePost(c.UserContext(), service.RatePostInput{
		UserID: userID,
		PostID: id,
		Rating: req.Rating,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(post)
}

// CommentPost handles POST /api/posts/:id/comment
// @Summary Comment on a post
// @Description Append a comment by the caller
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body CommentPostRequest true "Comment"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comment [post]
// @Security BearerAuth
func (s *Server) CommentPost(c *fiber.Ctx) error {
	userID, err := s.currentUser(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req CommentPostRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.CommentPost(c.UserContext(), service.CommentPostInput{
		UserID: userID,
		PostID: id,
		Text:   req.Text,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(post)
}
