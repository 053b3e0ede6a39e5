// Package history 从会话时间线重建问答对上下文。
package history

import "nutrimind/internal/model"

// Reconstruct 顺序扫描时间线，重建发送给后端的问答对序列。
// 规则：最近一条未配对的用户文本消息是候选问题，最近一条未配对的
// 助手文本/结构化消息是候选答案；两者同时存在时立即产出一对并清空。
// 图片消息不参与配对，也不打断已有候选；连续的同类消息只保留最新一条。
// 纯函数，对任意时间线（包括空时间线）都是全函数。
func Reconstruct(timeline []model.Message) []model.QAPair {
	var pairs []model.QAPair
	var question, answer *string

	for i := range timeline {
		msg := &timeline[i]
		if msg.ContentType == model.ContentImage {
			continue
		}

		switch msg.Role {
		case model.RoleUser:
			question = &msg.Content
		case model.RoleAssistant:
			answer = &msg.Content
		default:
			continue
		}

		if question != nil && answer != nil {
			pairs = append(pairs, model.QAPair{
				Question: *question,
				Answer:   *answer,
			})
			question, answer = nil, nil
		}
	}

	return pairs
}
