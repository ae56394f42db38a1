package transport

const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head><title>Upwork Connected</title></head>
<body>
<h1>Upwork account connected</h1>
<p>The authorization completed successfully. You can close this window.</p>
</body>
</html>`

const callbackRejectedPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Rejected</title></head>
<body>
<h1>Authorization rejected</h1>
<p>The consent flow was denied or returned no authorization code.</p>
</body>
</html>`

const callbackFailurePage = `<!DOCTYPE html>
<html>
<head><title>Authorization Failed</title></head>
<body>
<h1>Authorization failed</h1>
<p>The token exchange with Upwork did not succeed. Try again.</p>
</body>
</html>`
