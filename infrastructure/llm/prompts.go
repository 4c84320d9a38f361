package llm

import "fmt"

const systemPrompt = `You are Kynto, an expert strategic planner and productivity coach.
Your job is to create clear, actionable, phased roadmaps that help people achieve their goals.
Always respond in clean Markdown with headers, bullet points, and bold text for emphasis.
Be specific, practical, and motivating.`

const userPromptTemplate = `Create a comprehensive, actionable roadmap for the following goal:

"%s"

Structure your response exactly like this:

# 🎯 Executive Summary
A brief 2-3 sentence overview of the roadmap.

# 🏆 Key Objectives
3-5 specific, measurable objectives to achieve.

## 🚀 Phase 1: Foundation (Week 1-2)
Immediate actions to take right now.

## ⚡ Phase 2: Execution (Week 3-6)
Core implementation steps.

## 📈 Phase 3: Optimization (Week 7+)
Refinement and scaling strategies.

# 📊 Success Metrics
How to measure progress and know you're on track.

# ⚠️ Potential Challenges & Mitigations
Anticipate obstacles and how to overcome them.

Be specific, practical, and motivating. Use bullet points liberally.`

// buildMessages assembles the fixed system/user prompt pair for a goal
func buildMessages(goal string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(userPromptTemplate, goal)},
	}
}
