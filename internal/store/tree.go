package store

import "commentroom/internal/models"

type Node struct {
	Comment models.Comment `json:"comment"`
	Replies []*Node        `json:"replies"`
}

// BuildTree 把扁平列表还原为评论树，任意深度，同级保持输入顺序。
// 先为每条评论建节点再挂到父节点上，因此不依赖父评论在列表中排在前面。
// 父评论不在列表中（已删除）的回复连同其子树一起丢弃。
func BuildTree(comments []models.Comment) []*Node {
	nodes := make(map[uint]*Node, len(comments))
	ordered := make([]*Node, 0, len(comments))
	for _, c := range comments {
		n := &Node{Comment: c, Replies: []*Node{}}
		nodes[c.ID] = n
		ordered = append(ordered, n)
	}
	roots := []*Node{}
	for _, n := range ordered {
		if n.Comment.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if parent, ok := nodes[*n.Comment.ParentID]; ok {
			parent.Replies = append(parent.Replies, n)
		}
	}
	return roots
}
