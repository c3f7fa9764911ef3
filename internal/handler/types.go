package handler

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type startStoryRequest struct {
	AgeGroup      string `json:"age_group" binding:"required"`
	Theme         string `json:"theme" binding:"required"`
	CharacterName string `json:"character_name" binding:"required"`
	CharacterType string `json:"character_type" binding:"required"`
	Setting       string `json:"setting"`
}

type nextPageRequest struct {
	StoryID       string `json:"story_id" binding:"required"`
	CurrentPage   int    `json:"current_page"`
	AgeGroup      string `json:"age_group"`
	Theme         string `json:"theme"`
	CharacterName string `json:"character_name"`
	CharacterType string `json:"character_type"`
	Setting       string `json:"setting"`
}

type rateStoryRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

type speechRequest struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
}

type previewVoiceRequest struct {
	Voice string `json:"voice" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}
