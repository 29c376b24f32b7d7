// Package surveyservice owns researches and votes: publishing, participation,
// closing at the deadline and handing closed entities to the lottery.
package surveyservice
