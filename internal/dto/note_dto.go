package dto

// NoteCreateRequest 新建笔记请求
type NoteCreateRequest struct {
	// DraftKey 客户端草稿标识，防止同一草稿重复提交
	DraftKey string `json:"draftKey" form:"draftKey" binding:"max=128"`
	Title    string `json:"title" form:"title"`
	Content  string `json:"content" form:"content"`
}

// NoteUpdateRequest 修改笔记请求
type NoteUpdateRequest struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}
