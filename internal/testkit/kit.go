// Package testkit provides chat log fixtures and a seeded conversation
// generator for tests, the CLI demo command and local smoke runs.
package testkit

import (
	"fractalscan/domain/chat"
)

// Fixture is a named conversation with the mode it was written for.
type Fixture struct {
	Name     string
	Mode     chat.BranchingMode
	Messages []chat.Message
}

// LeadershipTiers is a small team log in the reply-list shape.
func LeadershipTiers() Fixture {
	return Fixture{
		Name: "leadership-tiers",
		Mode: chat.ModeReplies,
		Messages: []chat.Message{
			withText(chat.NewReplyMessage(1000, "leader", "1", "2", "3"), "Strategic planning"),
			withText(chat.NewReplyMessage(1001, "dev1", "4"), "I can build this"),
			withText(chat.NewReplyMessage(1002, "dev2", "5", "6"), "Timeline concerns"),
			withText(chat.NewReplyMessage(1025, "leader", "7", "8", "9", "10"), "Daily standup"),
			withText(chat.NewReplyMessage(1026, "dev1"), "Progress update"),
			withText(chat.NewReplyMessage(1050, "leader", "11", "12"), "Team sync"),
			withText(chat.NewReplyMessage(1051, "dev2", "13"), "Blocker found"),
		},
	}
}

// ThreadBurst is an anonymous log in the parent-pointer shape where one
// message draws three replies.
func ThreadBurst() Fixture {
	return Fixture{
		Name: "thread-burst",
		Mode: chat.ModeParent,
		Messages: []chat.Message{
			withText(chat.NewThreadMessage(1000, "", nil), "Hey team"),
			withText(chat.NewThreadMessage(1001, "", chat.ParentOf(1000)), "Reply 1"),
			withText(chat.NewThreadMessage(1002, "", chat.ParentOf(1000)), "Reply 2"),
			withText(chat.NewThreadMessage(1003, "", nil), "New thread"),
			withText(chat.NewThreadMessage(1004, "", chat.ParentOf(1000)), "Another reply"),
			withText(chat.NewThreadMessage(1005, "", nil), "Thread 3"),
		},
	}
}

// PlanningSession is a four person log in the parent-pointer shape.
func PlanningSession() Fixture {
	return Fixture{
		Name: "planning-session",
		Mode: chat.ModeParent,
		Messages: []chat.Message{
			withText(chat.NewThreadMessage(1000, "leader_1", nil), "Strategic planning session"),
			withText(chat.NewThreadMessage(1001, "member_1", chat.ParentOf(1000)), "Great vision!"),
			withText(chat.NewThreadMessage(1002, "member_2", chat.ParentOf(1000)), "How do we execute?"),
			withText(chat.NewThreadMessage(1003, "member_3", chat.ParentOf(1000)), "I can lead implementation"),
			withText(chat.NewThreadMessage(1004, "leader_1", nil), "Daily standup time"),
			withText(chat.NewThreadMessage(1005, "member_1", chat.ParentOf(1004)), "Progress update"),
			withText(chat.NewThreadMessage(1006, "member_2", chat.ParentOf(1004)), "Blocked on resources"),
			withText(chat.NewThreadMessage(1007, "leader_1", chat.ParentOf(1006)), "I'll help unblock"),
		},
	}
}

// AlignedHour puts three messages in tier 1 with 0, 2 and 4 replies, which
// yields a chaos score of 2.67.
func AlignedHour() Fixture {
	return Fixture{
		Name: "aligned-hour",
		Mode: chat.ModeReplies,
		Messages: []chat.Message{
			chat.NewReplyMessage(0, "ops"),
			chat.NewReplyMessage(24, "ops", "a", "b"),
			chat.NewReplyMessage(48, "lead", "c", "d", "e", "f"),
		},
	}
}

// Fixtures returns every named fixture.
func Fixtures() []Fixture {
	return []Fixture{LeadershipTiers(), ThreadBurst(), PlanningSession(), AlignedHour()}
}

// Lookup returns the fixture with the given name.
func Lookup(name string) (Fixture, bool) {
	for _, f := range Fixtures() {
		if f.Name == name {
			return f, true
		}
	}
	return Fixture{}, false
}

func withText(m chat.Message, text string) chat.Message {
	m.Text = text
	return m
}
